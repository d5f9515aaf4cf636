package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden           ErrCode = "FORBIDDEN"
	ErrCandidateAccessOnly ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrAdminAccessOnly     ErrCode = "ADMIN_ACCESS_ONLY"
	ErrNotOwner            ErrCode = "NOT_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrConflict         ErrCode = "CONFLICT"
	ErrDependencyExists ErrCode = "DEPENDENCY_EXISTS"

	// ─── Assessment timing ─────────────────────────────────────────────
	ErrAssessmentNotStarted ErrCode = "ASSESSMENT_NOT_STARTED"
	ErrAssessmentEnded      ErrCode = "ASSESSMENT_ENDED"
	ErrAssessmentCancelled  ErrCode = "ASSESSMENT_CANCELLED"
	ErrNotEnrolled          ErrCode = "NOT_ENROLLED"

	// ─── Invitations ───────────────────────────────────────────────────
	ErrInvitationInvalid  ErrCode = "INVITATION_INVALID"
	ErrInvitationExpired  ErrCode = "INVITATION_EXPIRED"
	ErrInvitationInactive ErrCode = "INVITATION_INACTIVE"
	ErrScheduleRequired   ErrCode = "SCHEDULE_REQUIRED"
	ErrInvitationSent     ErrCode = "INVITATION_ALREADY_SENT"
	ErrNoPendingInvitees  ErrCode = "NO_PENDING_INVITATIONS"
	ErrAssessmentArchived ErrCode = "ASSESSMENT_ARCHIVED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Incorrect email or password."
	case ErrSessionInvalidated:
		return "Your session has ended. Please open your invitation link again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrCandidateAccessOnly:
		return "This resource is restricted to candidates."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."
	case ErrNotOwner:
		return "You do not own this resource."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrDependencyExists:
		return "This resource is still referenced by other data."

	// ─── Assessment timing ─────────────────────────────────────────────
	case ErrAssessmentNotStarted:
		return "This assessment has not started yet."
	case ErrAssessmentEnded:
		return "This assessment has ended."
	case ErrAssessmentCancelled:
		return "This assessment has been cancelled."
	case ErrNotEnrolled:
		return "You are not invited to this assessment or it does not exist."

	// ─── Invitations ───────────────────────────────────────────────────
	case ErrInvitationInvalid:
		return "This invitation link is invalid."
	case ErrInvitationExpired:
		return "This invitation link has expired."
	case ErrInvitationInactive:
		return "This invitation is no longer active."
	case ErrScheduleRequired:
		return "Set a scheduled start before sending invitations."
	case ErrInvitationSent:
		return "Sent invitations cannot be removed."
	case ErrNoPendingInvitees:
		return "There are no pending invitations to send."
	case ErrAssessmentArchived:
		return "This assessment is archived."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
