package config

import (
	"fmt"

	"github.com/google/uuid"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateSessionKey returns the cache key holding a candidate's active JWT ID.
func (r *CacheKeyStruct) CandidateSessionKey(candidateID uuid.UUID) string {
	return fmt.Sprintf("login:candidate:%s", candidateID)
}

// InvitationSendLockKey guards an assessment against concurrent invitation sends.
func (r *CacheKeyStruct) InvitationSendLockKey(assessmentID uuid.UUID) string {
	return fmt.Sprintf("assessment:%s:invitations:send_lock", assessmentID)
}

var CacheKey = NewCacheKeyStruct()
