package config

type WorkerKeyStruct struct {
	MailQueue    string
	GradingQueue string
}

var WorkerKey = &WorkerKeyStruct{
	MailQueue:    "mail_queue",
	GradingQueue: "grading_queue",
}
