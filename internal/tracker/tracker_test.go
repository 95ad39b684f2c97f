package tracker

import (
	"context"
	"sync"
	"testing"

	"github.com/infodancer/connlimitd/internal/connlimit"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire and release", func(t *testing.T) {
		m := NewMemory()

		if n, _ := m.Live(ctx, "alice"); n != 0 {
			t.Fatalf("initial Live = %d, want 0", n)
		}

		for i := 0; i < 3; i++ {
			if err := m.Acquire(ctx, "alice"); err != nil {
				t.Fatalf("Acquire: %v", err)
			}
		}
		if n, _ := m.Live(ctx, "alice"); n != 3 {
			t.Errorf("Live = %d, want 3", n)
		}

		if err := m.Release(ctx, "alice"); err != nil {
			t.Fatalf("Release: %v", err)
		}
		if n, _ := m.Live(ctx, "alice"); n != 2 {
			t.Errorf("Live after Release = %d, want 2", n)
		}
	})

	t.Run("principals are independent", func(t *testing.T) {
		m := NewMemory()
		m.Acquire(ctx, "alice")
		m.Acquire(ctx, "alice")
		m.Acquire(ctx, "bob")

		if n, _ := m.Live(ctx, "alice"); n != 2 {
			t.Errorf("alice Live = %d, want 2", n)
		}
		if n, _ := m.Live(ctx, "bob"); n != 1 {
			t.Errorf("bob Live = %d, want 1", n)
		}
	})

	t.Run("release without acquire is a no-op", func(t *testing.T) {
		m := NewMemory()
		if err := m.Release(ctx, "alice"); err != nil {
			t.Fatalf("Release: %v", err)
		}
		if n, _ := m.Live(ctx, "alice"); n != 0 {
			t.Errorf("Live = %d, want 0", n)
		}
	})

	t.Run("balances to zero under concurrency", func(t *testing.T) {
		m := NewMemory()
		var wg sync.WaitGroup

		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := connlimit.PrincipalID("p")
				if i%2 == 0 {
					id = "q"
				}
				for j := 0; j < 200; j++ {
					m.Acquire(ctx, id)
					m.Release(ctx, id)
				}
			}(i)
		}
		wg.Wait()

		for _, id := range []connlimit.PrincipalID{"p", "q"} {
			if n, _ := m.Live(ctx, id); n != 0 {
				t.Errorf("%s Live after balanced acquire/release = %d, want 0", id, n)
			}
		}
	})
}
