package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"throttled", errors.New("ThrottlingException: rate exceeded"), true},
		{"http 503", errors.New("503 service unavailable"), true},
		{"timeout", errors.New("request timed out"), true},
		{"reset", errors.New("read tcp: connection reset by peer"), true},
		{"missing key", errors.New("NoSuchKey: the specified key does not exist"), false},
		{"denied", errors.New("AccessDenied"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestMemoryStoreFetch(t *testing.T) {
	store := NewMemory()
	store.Put("master_ds.db", []byte("payload"))

	var buf bytes.Buffer
	require.NoError(t, store.Fetch(context.Background(), "master_ds.db", &buf))
	assert.Equal(t, "payload", buf.String())
	assert.Equal(t, 1, store.Fetches())
}

func TestMemoryStoreMissingKey(t *testing.T) {
	store := NewMemory()
	var buf bytes.Buffer
	err := store.Fetch(context.Background(), "absent", &buf)
	assert.Error(t, err)
}

func TestMemoryStoreFailNext(t *testing.T) {
	store := NewMemory()
	store.Put("k", []byte("v"))
	store.FailNext("k", fmt.Errorf("503 slow down"), fmt.Errorf("timeout"))

	var buf bytes.Buffer
	require.Error(t, store.Fetch(context.Background(), "k", &buf))
	require.Error(t, store.Fetch(context.Background(), "k", &buf))
	require.NoError(t, store.Fetch(context.Background(), "k", &buf))
	assert.Equal(t, "v", buf.String())
}
