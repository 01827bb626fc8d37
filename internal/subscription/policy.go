package subscription

import "go.uber.org/zap"

// Policy decides what a persistence failure means for each kind of ledger operation.
//
// Quota checks gate availability: when FailOpenChecks is set an infrastructure error
// lets the action proceed. Consumption records are bookkeeping: when SwallowRecordErrors
// is set a failed increment is logged and dropped, so a lost increment never turns into
// an error on the user-facing path.
type Policy struct {
	FailOpenChecks      bool
	SwallowRecordErrors bool
}

// DefaultPolicy fails open on checks and swallows record errors.
var DefaultPolicy = Policy{FailOpenChecks: true, SwallowRecordErrors: true}

func (p Policy) onCheckError(logger *zap.Logger, resource Resource, err error) Decision {
	if p.FailOpenChecks {
		logger.Warn("quota check failed, allowing", zap.String("resource", string(resource)), zap.Error(err))
		return Allow()
	}
	logger.Error("quota check failed, denying", zap.String("resource", string(resource)), zap.Error(err))
	return Deny(MsgQuotaUnavailable)
}

func (p Policy) onRecordError(logger *zap.Logger, resource Resource, err error) error {
	logger.Error("record usage failed", zap.String("resource", string(resource)), zap.Error(err))
	if p.SwallowRecordErrors {
		return nil
	}
	return err
}
