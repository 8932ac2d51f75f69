package notifications

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDiscordDisabled(t *testing.T) {
	d := NewDiscord("", nil)
	assert.False(t, d.Enabled())
	d.NotifyApplicationInterest(ApplicationInterest{SessionID: "s", Scheme: "PM Kisan"})
	d.Wait()

	var nilDiscord *Discord
	assert.False(t, nilDiscord.Enabled())
	nilDiscord.NotifyCatalogUnavailable("schemes.json", errors.New("missing"))
	nilDiscord.Wait()
}

func TestNotifyApplicationInterest(t *testing.T) {
	var mu sync.Mutex
	var got []discordMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg discordMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	age := 62
	d := NewDiscord(srv.URL, zaptest.NewLogger(t))
	d.NotifyApplicationInterest(ApplicationInterest{SessionID: "abc", Scheme: "वृद्धावस्था पेंशन", Age: &age})
	d.NotifyCatalogUnavailable("/etc/schemes.json", errors.New("no such file"))
	d.Wait()

	require.Len(t, got, 2)
	var interest discordMessage
	for _, m := range got {
		if m.Content == "" {
			interest = m
		}
	}
	require.Len(t, interest.Embeds, 1)
	e := interest.Embeds[0]
	assert.Contains(t, e.Description, "वृद्धावस्था पेंशन")
	assert.Equal(t, "62", e.Fields[1].Value)
	assert.Equal(t, "-", e.Fields[2].Value)
	assert.Equal(t, "CSC", e.Fields[3].Value)
}
