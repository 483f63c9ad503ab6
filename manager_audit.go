package authcore

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventIssueSuccess         = "issue_success"
	auditEventIssueFailure         = "issue_failure"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventRefreshRateLimited   = "refresh_rate_limited"
	auditEventRefreshReuseDetected = "refresh_reuse_detected"
	auditEventSessionRevoked       = "session_revoked"
	auditEventRevoke               = "revoke"
	auditEventRevokeAll            = "revoke_all"
	auditEventAuthorizeDenied      = "authorize_denied"
)

// AuditErrorCode is the stable machine-readable error label carried in
// [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrUnauthenticated  AuditErrorCode = "unauthenticated"
	auditErrMalformed        AuditErrorCode = "token_malformed"
	auditErrSignatureInvalid AuditErrorCode = "signature_invalid"
	auditErrExpired          AuditErrorCode = "token_expired"
	auditErrReuseDetected    AuditErrorCode = "refresh_reuse"
	auditErrSessionRevoked   AuditErrorCode = "session_revoked"
	auditErrRateLimited      AuditErrorCode = "rate_limited"
	auditErrForbidden        AuditErrorCode = "forbidden"
	auditErrInvalidPrincipal AuditErrorCode = "invalid_principal"
	auditErrUnavailable      AuditErrorCode = "store_unavailable"
	auditErrInternal         AuditErrorCode = "internal_error"
)

func (m *Manager) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectID string,
	tokenID string,
	familyID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if m == nil || m.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		SubjectID: subjectID,
		TokenID:   tokenID,
		FamilyID:  familyID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	m.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrTokenMalformed):
		return auditErrMalformed
	case errors.Is(err, ErrSignatureInvalid):
		return auditErrSignatureInvalid
	case errors.Is(err, ErrTokenExpired):
		return auditErrExpired
	case errors.Is(err, ErrReuseDetected):
		return auditErrReuseDetected
	case errors.Is(err, ErrSessionRevoked):
		return auditErrSessionRevoked
	case errors.Is(err, ErrRefreshRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrInvalidPrincipal):
		return auditErrInvalidPrincipal
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
