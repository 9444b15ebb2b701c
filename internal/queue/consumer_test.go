package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flight-surety/internal/events"
	"github.com/iliyamo/flight-surety/internal/model"
)

type fakeSettler struct {
	calls []model.FlightKey
}

func (f *fakeSettler) CreditInsurees(_ context.Context, _ uint64, key model.FlightKey) (int, error) {
	f.calls = append(f.calls, key)
	return 2, nil
}

func TestHandleVerdict(t *testing.T) {
	t.Run("late-airline verdict triggers crediting and logging", func(t *testing.T) {
		t.Chdir(t.TempDir())
		s := &fakeSettler{}
		body, err := json.Marshal(events.FlightStatusInfo{
			AirlineID: 10, Flight: "ND1309", Timestamp: 1700000000,
			StatusCode: model.StatusLateAirline,
		})
		require.NoError(t, err)

		require.NoError(t, handleVerdict(body, s, 1))
		require.Len(t, s.calls, 1)
		assert.Equal(t, model.FlightKey{AirlineID: 10, Flight: "ND1309", Timestamp: 1700000000}, s.calls[0])

		logged, err := os.ReadFile(filepath.Join("logs", "verdicts.log"))
		require.NoError(t, err)
		assert.Contains(t, string(logged), "airline_id=10")
		assert.Contains(t, string(logged), "policies_credited=2")
	})

	t.Run("other verdicts are logged but not settled", func(t *testing.T) {
		t.Chdir(t.TempDir())
		s := &fakeSettler{}
		body, err := json.Marshal(events.FlightStatusInfo{
			AirlineID: 10, Flight: "ND1309", Timestamp: 1700000000,
			StatusCode: model.StatusLateWeather,
		})
		require.NoError(t, err)

		require.NoError(t, handleVerdict(body, s, 1))
		assert.Empty(t, s.calls)
		assert.FileExists(t, filepath.Join("logs", "verdicts.log"))
	})

	t.Run("malformed payload is rejected", func(t *testing.T) {
		t.Chdir(t.TempDir())
		s := &fakeSettler{}
		assert.Error(t, handleVerdict([]byte("{not json"), s, 1))
		assert.Empty(t, s.calls)
	})
}
