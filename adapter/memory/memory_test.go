package memory_test

import (
	"context"
	"testing"

	"github.com/binaryburst/entitykit/adapter/memory"
	"go.llib.dev/testcase"
)

func TestMemory(t *testing.T) {
	s := testcase.NewSpec(t)

	const ns = "ns"
	var (
		m   = testcase.Let(s, func(t *testcase.T) *memory.Memory { return memory.NewMemory() })
		ctx = testcase.LetValue(s, context.Background())
	)

	s.Test("Set and Get", func(t *testcase.T) {
		m.Get(t).Set(ctx.Get(t), ns, "k", 42)
		v, ok := m.Get(t).Get(ctx.Get(t), ns, "k")
		t.Must.True(ok)
		t.Must.Equal(42, v)
	})

	s.Test("Del reports whether the key existed", func(t *testcase.T) {
		t.Must.False(m.Get(t).Del(ctx.Get(t), ns, "k"))
		m.Get(t).Set(ctx.Get(t), ns, "k", 42)
		t.Must.True(m.Get(t).Del(ctx.Get(t), ns, "k"))
	})

	s.Test("overwriting a key keeps its position", func(t *testcase.T) {
		m.Get(t).Set(ctx.Get(t), ns, "a", 1)
		m.Get(t).Set(ctx.Get(t), ns, "b", 2)
		m.Get(t).Set(ctx.Get(t), ns, "a", 3)
		t.Must.Equal([]any{3, 2}, m.Get(t).All(ctx.Get(t), ns))
	})

	s.Test("NextSequence is counted per namespace", func(t *testcase.T) {
		t.Must.Equal(int64(1), m.Get(t).NextSequence("a"))
		t.Must.Equal(int64(2), m.Get(t).NextSequence("a"))
		t.Must.Equal(int64(1), m.Get(t).NextSequence("b"))
	})

	s.Describe("transaction", func(s *testcase.Spec) {
		tx := testcase.Let(s, func(t *testcase.T) context.Context {
			tx, err := m.Get(t).BeginTx(ctx.Get(t))
			t.Must.NoError(err)
			return tx
		})

		s.Test("uncommitted changes are only visible in the transaction", func(t *testcase.T) {
			m.Get(t).Set(tx.Get(t), ns, "k", "v")

			_, ok := m.Get(t).Get(ctx.Get(t), ns, "k")
			t.Must.False(ok)
			v, ok := m.Get(t).Get(tx.Get(t), ns, "k")
			t.Must.True(ok)
			t.Must.Equal("v", v)
		})

		s.Test("commit publishes the changes", func(t *testcase.T) {
			m.Get(t).Set(ctx.Get(t), ns, "gone", 0)
			m.Get(t).Set(tx.Get(t), ns, "k", "v")
			t.Must.True(m.Get(t).Del(tx.Get(t), ns, "gone"))
			t.Must.NoError(m.Get(t).CommitTx(tx.Get(t)))

			t.Must.Equal([]any{"v"}, m.Get(t).All(ctx.Get(t), ns))
		})

		s.Test("rollback discards the changes", func(t *testcase.T) {
			m.Get(t).Set(tx.Get(t), ns, "k", "v")
			t.Must.NoError(m.Get(t).RollbackTx(tx.Get(t)))

			t.Must.Empty(m.Get(t).All(ctx.Get(t), ns))
		})

		s.Test("a finished transaction can't be committed again", func(t *testcase.T) {
			t.Must.NoError(m.Get(t).RollbackTx(tx.Get(t)))
			t.Must.Error(m.Get(t).RollbackTx(tx.Get(t)))
		})

		s.Test("nested transaction commits into its parent", func(t *testcase.T) {
			inner, err := m.Get(t).BeginTx(tx.Get(t))
			t.Must.NoError(err)
			m.Get(t).Set(inner, ns, "k", "v")
			t.Must.NoError(m.Get(t).CommitTx(inner))

			_, ok := m.Get(t).Get(ctx.Get(t), ns, "k")
			t.Must.False(ok)
			_, ok = m.Get(t).Get(tx.Get(t), ns, "k")
			t.Must.True(ok)
		})

		s.Test("committing without a transaction fails", func(t *testcase.T) {
			t.Must.Error(m.Get(t).CommitTx(ctx.Get(t)))
		})
	})
}
