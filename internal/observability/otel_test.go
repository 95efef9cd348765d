package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/celerix-dev/celerix-messages/internal/platform/logger"
)

func TestInitOTel_Disabled(t *testing.T) {
	shutdown, err := InitOTel(context.Background(), logger.Nop(), OtelConfig{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitOTel_StdoutExportsSpans(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	shutdown, err := InitOTel(ctx, logger.Nop(), OtelConfig{Enabled: true, Exporter: ExporterStdout, Writer: &buf})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(ctx, "list-messages")
	span.End()

	require.NoError(t, shutdown(ctx))
	require.Contains(t, buf.String(), "list-messages")
}

func TestInitOTel_UnknownExporter(t *testing.T) {
	_, err := InitOTel(context.Background(), logger.Nop(), OtelConfig{Enabled: true, Exporter: "zipkin"})
	require.Error(t, err)
}
