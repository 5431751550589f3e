package rotation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStoreUnknownProvider(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, ok := store.Get("ghost")
	assert.False(t, ok)

	token, ok := store.AccessToken("ghost")
	assert.False(t, ok)
	assert.Empty(t, token)

	_, ok = store.AgeSinceRotation("ghost")
	assert.False(t, ok)

	assert.False(t, store.Update("ghost", func(r *TokenRecord) { r.AccessToken = "x" }))
}

func TestStoreAgeSinceRotation(t *testing.T) {
	t.Parallel()

	store := NewStore()
	store.Init("marketplace", "refresh-0", time.Hour)

	// Never rotated reports a huge age so the first tick rotates it.
	age, ok := store.AgeSinceRotation("marketplace")
	assert.True(t, ok)
	assert.Greater(t, age, 24*time.Hour)

	store.Update("marketplace", func(r *TokenRecord) { r.RotatedAt = time.Now() })
	age, _ = store.AgeSinceRotation("marketplace")
	assert.Less(t, age, time.Second)
}

func TestStoreConcurrentAccess(t *testing.T) {
	t.Parallel()

	store := NewStore()
	store.Init("marketplace", "refresh-0", time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Update("marketplace", func(r *TokenRecord) {
				r.AccessToken = "token"
				r.RotatedAt = time.Now()
			})
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, ok := store.Get("marketplace")
			if ok && rec.AccessToken != "" && rec.RotatedAt.IsZero() {
				t.Error("observed token without rotation timestamp")
			}
		}()
	}
	wg.Wait()
}

func TestStoreProviders(t *testing.T) {
	t.Parallel()

	store := NewStore()
	store.Init("a", "r", time.Hour)
	store.Init("b", "r", time.Hour)
	assert.ElementsMatch(t, []string{"a", "b"}, store.Providers())
}
