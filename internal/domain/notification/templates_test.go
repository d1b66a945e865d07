package notification

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	got []Message
}

func (c *captureNotifier) Notify(_ context.Context, msg Message) error {
	c.got = append(c.got, msg)
	return nil
}

func writeMessagesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "messages.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadTemplates(t *testing.T) {
	path := writeMessagesFile(t, `{"connection_linked":{"title":"Conta conectada","body":"{merchant} foi conectada."}}`)

	tmpl, err := LoadTemplates(path)
	require.NoError(t, err)
	assert.Equal(t, "Conta conectada", tmpl[KindConnectionLinked].Title)
}

func TestLoadTemplates_Errors(t *testing.T) {
	_, err := LoadTemplates(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadTemplates(writeMessagesFile(t, `{"connection_linked":`))
	assert.Error(t, err)

	_, err = LoadTemplates(writeMessagesFile(t, `{"sync_complete":{"title":"x"}}`))
	assert.ErrorContains(t, err, "unknown notification kind")
}

func TestTemplated_RewritesCopy(t *testing.T) {
	capture := &captureNotifier{}
	n := Templated(capture, Templates{
		KindConnectionLinked:   {Title: "Conta conectada", Body: "{merchant} foi conectada."},
		KindConnectionUnlinked: {Body: "{merchant} foi desconectada."},
	})

	require.NoError(t, n.Notify(context.Background(), ConnectionLinked("user-1", "Netflix")))
	require.NoError(t, n.Notify(context.Background(), ConnectionUnlinked("user-1", "Uber")))

	require.Len(t, capture.got, 2)
	assert.Equal(t, "Conta conectada", capture.got[0].Title)
	assert.Equal(t, "Netflix foi conectada.", capture.got[0].Body)
	assert.Equal(t, "Account disconnected", capture.got[1].Title, "empty title keeps the default")
	assert.Equal(t, "Uber foi desconectada.", capture.got[1].Body)
	assert.Equal(t, "user-1", capture.got[1].UserID)
}
