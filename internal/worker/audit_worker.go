package worker

import (
	"github.com/spec-kit/modcenter/internal/events"
	"github.com/spec-kit/modcenter/internal/service"
)

// StartAuditWorker subscribes the audit log to ticket lifecycle events.
func StartAuditWorker(auditLogger *service.AuditLogger, dispatcher events.Dispatcher) {
	if auditLogger == nil {
		return
	}
	auditLogger.RegisterHandlers(dispatcher)
}
