package eventbus

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func natsURL() string {
	if url := os.Getenv("TEST_NATS_URL"); url != "" {
		return url
	}
	return nats.DefaultURL
}

func subscriberOrSkip(t *testing.T) *nats.Conn {
	t.Helper()
	conn, err := nats.Connect(natsURL(), nats.Timeout(time.Second))
	if err != nil {
		t.Skip("NATS not available, skipping test")
	}
	t.Cleanup(conn.Close)
	return conn
}

func TestPublishReport_Subjects(t *testing.T) {
	sub := subscriberOrSkip(t)

	ingested, err := sub.SubscribeSync(SubjectIngested)
	require.NoError(t, err)
	threats, err := sub.SubscribeSync(SubjectThreat)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	pub, err := NewPublisher(natsURL(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer pub.Close()

	clean := models.StoredReport{
		Sequence: 1,
		Report:   models.ClientReport{Identity: &models.EndpointIdentity{ID: "a"}, Status: models.StatusClean},
	}
	threat := models.StoredReport{
		Sequence: 2,
		Report:   models.ClientReport{Identity: &models.EndpointIdentity{ID: "b"}, Status: models.StatusThreat, Severity: models.SeverityHigh},
	}

	require.NoError(t, pub.PublishReport(clean))
	require.NoError(t, pub.PublishReport(threat))

	for _, want := range []uint64{1, 2} {
		msg, err := ingested.NextMsg(2 * time.Second)
		require.NoError(t, err)

		var got models.StoredReport
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, want, got.Sequence)
	}

	msg, err := threats.NextMsg(2 * time.Second)
	require.NoError(t, err)
	var got models.StoredReport
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "b", got.Report.IdentityID())
	assert.Equal(t, models.SeverityHigh, got.Report.Severity)

	_, err = threats.NextMsg(200 * time.Millisecond)
	assert.ErrorIs(t, err, nats.ErrTimeout)
}

func TestIsConnected_NilConn(t *testing.T) {
	var p Publisher
	assert.False(t, p.IsConnected())
	p.Close()
}
