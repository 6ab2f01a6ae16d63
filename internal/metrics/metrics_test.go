package metrics

import (
	"testing"
)

func TestMetricsRegistered(t *testing.T) {
	// Register metrics explicitly (replaces former init() auto-registration).
	Register()

	// Verify that calling Inc/Observe on metrics does not panic.
	OpsTotal.WithLabelValues("azureblob", "PUT_BLOB", "success").Inc()
	OpDuration.WithLabelValues("azureblob", "PUT_BLOB").Observe(0.001)
	RequestBodySize.WithLabelValues("s3", "PUT_OBJECT").Observe(1024)
	ResponseBodySize.WithLabelValues("s3", "GET_OBJECT").Observe(2048)
	RedirectsTotal.WithLabelValues("s3").Inc()
	ReconnectsTotal.WithLabelValues("azurefile").Inc()
	MultipartPartsTotal.WithLabelValues("success").Inc()
}

func TestRegisterIdempotent(t *testing.T) {
	Register()
	Register()
}
