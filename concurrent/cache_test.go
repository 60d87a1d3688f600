// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package concurrent

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCache_GetOr(t *testing.T) {
	t.Run("will only call f once", func(t *testing.T) {
		c := NewCache[string, int]()

		calls := 0
		f := func() (int, error) {
			calls++
			return 1, nil
		}

		for range 3 {
			v, err := c.GetOr("a", f)
			require.NoError(t, err)
			require.Equal(t, 1, v)
		}
		require.Equal(t, 1, calls)
	})

	t.Run("will not store a failed value", func(t *testing.T) {
		c := NewCache[string, int]()

		_, err := c.GetOr("a", func() (int, error) {
			return 0, errors.New("failed")
		})
		require.Error(t, err)

		_, ok := c.Get("a")
		require.False(t, ok)
	})
}

func TestCache_Update(t *testing.T) {
	t.Run("will serialize concurrent updates", func(t *testing.T) {
		c := NewCache[string, int]()

		var wg sync.WaitGroup
		for range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()

				_, err := c.Update("counter", func(v int, ok bool) (int, error) {
					return v + 1, nil
				})
				require.NoError(t, err)
			}()
		}
		wg.Wait()

		v, ok := c.Get("counter")
		require.True(t, ok)
		require.Equal(t, 100, v)
		require.Equal(t, 1, c.Len())
	})

	t.Run("will keep the old value if f fails", func(t *testing.T) {
		c := NewCache[string, int]()
		_, err := c.Update("a", func(int, bool) (int, error) { return 5, nil })
		require.NoError(t, err)

		v, err := c.Update("a", func(int, bool) (int, error) { return 0, errors.New("failed") })
		require.Error(t, err)
		require.Equal(t, 5, v)

		got, _ := c.Get("a")
		require.Equal(t, 5, got)
	})
}
