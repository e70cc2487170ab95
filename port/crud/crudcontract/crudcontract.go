// Package crudcontract holds the behaviour every crud.Repository implementation must satisfy.
// Adapters register the contract into their own testcase.Spec.
package crudcontract

import (
	"context"
	"testing"

	"github.com/binaryburst/entitykit/port/crud"
	"go.llib.dev/frameless/port/comproto"
	"go.llib.dev/testcase"
	"go.llib.dev/testcase/assert"
)

type Config[ENT any, ID comparable] struct {
	// MakeContext [optional] returns the background context for the repository calls.
	//
	// default: context.Background()
	MakeContext func(testing.TB) context.Context
	// MakeEntity returns a populated entity without an ID.
	MakeEntity func(testing.TB) ENT
	// ChangeEntity modifies the mutable fields of the entity, the ID must not be changed.
	ChangeEntity func(testing.TB, *ENT)
	// IDA is the ID Accessor of ENT.
	IDA crud.IDAccessor[ENT, ID]
}

func (c *Config[ENT, ID]) init() {
	if c.MakeContext == nil {
		c.MakeContext = func(testing.TB) context.Context { return context.Background() }
	}
}

// Repository registers the crud.Repository contract into s.
func Repository[ENT any, ID comparable](s *testcase.Spec, subject func(testing.TB) crud.Repository[ENT, ID], c Config[ENT, ID]) {
	c.init()

	repo := testcase.Let(s, func(t *testcase.T) crud.Repository[ENT, ID] {
		r := subject(t)
		assert.Must(t).NoError(r.DeleteAll(c.MakeContext(t)))
		t.Defer(func() { _ = r.DeleteAll(c.MakeContext(t)) })
		return r
	})

	create := func(t *testcase.T) ENT {
		saved, err := repo.Get(t).Save(c.MakeContext(t), c.MakeEntity(t))
		assert.Must(t).NoError(err)
		_, ok := c.IDA.Lookup(saved)
		assert.Must(t).True(ok, "saved entity is expected to have an ID")
		return saved
	}

	s.Describe("#FindAll", func(s *testcase.Spec) {
		act := func(t *testcase.T) ([]ENT, error) {
			return repo.Get(t).FindAll(c.MakeContext(t))
		}

		s.When("the repository is empty", func(s *testcase.Spec) {
			s.Then("an empty list is returned", func(t *testcase.T) {
				vs, err := act(t)
				t.Must.NoError(err)
				t.Must.NotNil(vs)
				t.Must.Empty(vs)
			})
		})

		s.When("entities are stored", func(s *testcase.Spec) {
			ents := testcase.Let(s, func(t *testcase.T) []ENT {
				return []ENT{create(t), create(t)}
			}).EagerLoading(s)

			s.Then("every entity is returned", func(t *testcase.T) {
				vs, err := act(t)
				t.Must.NoError(err)
				t.Must.ContainExactly(ents.Get(t), vs)
			})
		})
	})

	s.Describe("#FindByID", func(s *testcase.Spec) {
		s.When("the entity is stored", func(s *testcase.Spec) {
			ent := testcase.Let(s, create).EagerLoading(s)

			s.Then("it is found", func(t *testcase.T) {
				got, found, err := repo.Get(t).FindByID(c.MakeContext(t), c.IDA.Get(ent.Get(t)))
				t.Must.NoError(err)
				t.Must.True(found)
				t.Must.Equal(ent.Get(t), got)
			})

			s.Then("ExistsByID reports it", func(t *testcase.T) {
				ok, err := repo.Get(t).ExistsByID(c.MakeContext(t), c.IDA.Get(ent.Get(t)))
				t.Must.NoError(err)
				t.Must.True(ok)
			})

			s.And("it is deleted", func(s *testcase.Spec) {
				s.Before(func(t *testcase.T) {
					t.Must.NoError(repo.Get(t).DeleteByID(c.MakeContext(t), c.IDA.Get(ent.Get(t))))
				})

				s.Then("it is no longer found", func(t *testcase.T) {
					_, found, err := repo.Get(t).FindByID(c.MakeContext(t), c.IDA.Get(ent.Get(t)))
					t.Must.NoError(err)
					t.Must.False(found)
				})

				s.Then("ExistsByID reports it as absent", func(t *testcase.T) {
					ok, err := repo.Get(t).ExistsByID(c.MakeContext(t), c.IDA.Get(ent.Get(t)))
					t.Must.NoError(err)
					t.Must.False(ok)
				})
			})
		})
	})

	s.Describe("#Save", func(s *testcase.Spec) {
		s.When("the entity has no ID", func(s *testcase.Spec) {
			s.Then("an ID is assigned and the entity becomes findable", func(t *testcase.T) {
				saved := create(t)
				got, found, err := repo.Get(t).FindByID(c.MakeContext(t), c.IDA.Get(saved))
				t.Must.NoError(err)
				t.Must.True(found)
				t.Must.Equal(saved, got)
			})

			s.Then("each entity receives a distinct ID", func(t *testcase.T) {
				t.Must.NotEqual(c.IDA.Get(create(t)), c.IDA.Get(create(t)))
			})
		})

		s.When("the entity carries the ID of a stored entity", func(s *testcase.Spec) {
			ent := testcase.Let(s, func(t *testcase.T) ENT {
				v := create(t)
				c.ChangeEntity(t, &v)
				return v
			}).EagerLoading(s)

			s.Then("the stored entity is updated", func(t *testcase.T) {
				saved, err := repo.Get(t).Save(c.MakeContext(t), ent.Get(t))
				t.Must.NoError(err)
				t.Must.Equal(ent.Get(t), saved)

				got, found, err := repo.Get(t).FindByID(c.MakeContext(t), c.IDA.Get(ent.Get(t)))
				t.Must.NoError(err)
				t.Must.True(found)
				t.Must.Equal(ent.Get(t), got)
			})

			s.Then("no new entity is added", func(t *testcase.T) {
				_, err := repo.Get(t).Save(c.MakeContext(t), ent.Get(t))
				t.Must.NoError(err)
				vs, err := repo.Get(t).FindAll(c.MakeContext(t))
				t.Must.NoError(err)
				t.Must.Equal(1, len(vs))
			})
		})

		s.When("the entity carries an ID that is not stored", func(s *testcase.Spec) {
			ent := testcase.Let(s, func(t *testcase.T) ENT {
				v := create(t)
				t.Must.NoError(repo.Get(t).DeleteByID(c.MakeContext(t), c.IDA.Get(v)))
				return v
			}).EagerLoading(s)

			s.Then("it is stored under the supplied ID", func(t *testcase.T) {
				saved, err := repo.Get(t).Save(c.MakeContext(t), ent.Get(t))
				t.Must.NoError(err)
				t.Must.Equal(c.IDA.Get(ent.Get(t)), c.IDA.Get(saved))

				got, found, err := repo.Get(t).FindByID(c.MakeContext(t), c.IDA.Get(ent.Get(t)))
				t.Must.NoError(err)
				t.Must.True(found)
				t.Must.Equal(ent.Get(t), got)
			})
		})

		s.When("the context is cancelled", func(s *testcase.Spec) {
			s.Then("the context error is returned", func(t *testcase.T) {
				ctx, cancel := context.WithCancel(c.MakeContext(t))
				cancel()
				_, err := repo.Get(t).Save(ctx, c.MakeEntity(t))
				t.Must.ErrorIs(context.Canceled, err)
			})
		})
	})

	s.Describe("#SaveAll", func(s *testcase.Spec) {
		s.Then("every entity is stored with an ID", func(t *testcase.T) {
			saved, err := repo.Get(t).SaveAll(c.MakeContext(t), []ENT{c.MakeEntity(t), c.MakeEntity(t), c.MakeEntity(t)})
			t.Must.NoError(err)
			t.Must.Equal(3, len(saved))

			for _, ent := range saved {
				got, found, err := repo.Get(t).FindByID(c.MakeContext(t), c.IDA.Get(ent))
				t.Must.NoError(err)
				t.Must.True(found)
				t.Must.Equal(ent, got)
			}
		})

		s.Then("the input order is kept in the result", func(t *testcase.T) {
			a, b := c.MakeEntity(t), c.MakeEntity(t)
			saved, err := repo.Get(t).SaveAll(c.MakeContext(t), []ENT{a, b})
			t.Must.NoError(err)
			t.Must.Equal(2, len(saved))
			c.IDA.Set(&a, c.IDA.Get(saved[0]))
			c.IDA.Set(&b, c.IDA.Get(saved[1]))
			t.Must.Equal([]ENT{a, b}, saved)
		})

		s.Then("an empty batch is accepted", func(t *testcase.T) {
			saved, err := repo.Get(t).SaveAll(c.MakeContext(t), []ENT{})
			t.Must.NoError(err)
			t.Must.Empty(saved)
		})

		s.Then("stored entities are updated in place", func(t *testcase.T) {
			ent := create(t)
			c.ChangeEntity(t, &ent)
			saved, err := repo.Get(t).SaveAll(c.MakeContext(t), []ENT{ent, c.MakeEntity(t)})
			t.Must.NoError(err)
			t.Must.Equal(ent, saved[0])

			vs, err := repo.Get(t).FindAll(c.MakeContext(t))
			t.Must.NoError(err)
			t.Must.Equal(2, len(vs))
			t.Must.Contain(vs, ent)
		})
	})

	s.Describe("#DeleteByID", func(s *testcase.Spec) {
		s.When("the entity is stored", func(s *testcase.Spec) {
			ent := testcase.Let(s, create).EagerLoading(s)
			oth := testcase.Let(s, create).EagerLoading(s)

			s.Then("only that entity is removed", func(t *testcase.T) {
				t.Must.NoError(repo.Get(t).DeleteByID(c.MakeContext(t), c.IDA.Get(ent.Get(t))))

				vs, err := repo.Get(t).FindAll(c.MakeContext(t))
				t.Must.NoError(err)
				t.Must.Equal([]ENT{oth.Get(t)}, vs)
			})
		})

		s.When("no entity is stored with the ID", func(s *testcase.Spec) {
			s.Then("ErrNotFound is returned", func(t *testcase.T) {
				ent := create(t)
				t.Must.NoError(repo.Get(t).DeleteByID(c.MakeContext(t), c.IDA.Get(ent)))
				t.Must.ErrorIs(crud.ErrNotFound, repo.Get(t).DeleteByID(c.MakeContext(t), c.IDA.Get(ent)))
			})
		})
	})

	s.Describe("#DeleteAll", func(s *testcase.Spec) {
		s.Then("every entity is removed", func(t *testcase.T) {
			create(t)
			create(t)
			t.Must.NoError(repo.Get(t).DeleteAll(c.MakeContext(t)))

			vs, err := repo.Get(t).FindAll(c.MakeContext(t))
			t.Must.NoError(err)
			t.Must.Empty(vs)
		})

		s.Then("an empty repository can be cleared", func(t *testcase.T) {
			t.Must.NoError(repo.Get(t).DeleteAll(c.MakeContext(t)))
		})
	})

	s.Context("OnePhaseCommitProtocol", func(s *testcase.Spec) {
		cm := func(t *testcase.T) comproto.OnePhaseCommitProtocol {
			v, ok := repo.Get(t).(comproto.OnePhaseCommitProtocol)
			if !ok {
				t.Skip("repository has no transaction support")
			}
			return v
		}

		s.Then("changes made in a committed transaction are kept", func(t *testcase.T) {
			tx, err := cm(t).BeginTx(c.MakeContext(t))
			t.Must.NoError(err)
			saved, err := repo.Get(t).SaveAll(tx, []ENT{c.MakeEntity(t), c.MakeEntity(t)})
			t.Must.NoError(err)
			t.Must.NoError(cm(t).CommitTx(tx))

			vs, err := repo.Get(t).FindAll(c.MakeContext(t))
			t.Must.NoError(err)
			t.Must.ContainExactly(saved, vs)
		})

		s.Then("changes made in a rolled back transaction are discarded", func(t *testcase.T) {
			stored := create(t)
			tx, err := cm(t).BeginTx(c.MakeContext(t))
			t.Must.NoError(err)
			_, err = repo.Get(t).SaveAll(tx, []ENT{c.MakeEntity(t), c.MakeEntity(t)})
			t.Must.NoError(err)
			t.Must.NoError(repo.Get(t).DeleteByID(tx, c.IDA.Get(stored)))
			t.Must.NoError(cm(t).RollbackTx(tx))

			vs, err := repo.Get(t).FindAll(c.MakeContext(t))
			t.Must.NoError(err)
			t.Must.Equal([]ENT{stored}, vs)
		})

		s.Then("concurrent transactions cannot both insert the same ID", func(t *testcase.T) {
			r, p := repo.Get(t), cm(t)
			ctx := c.MakeContext(t)
			a := create(t)
			t.Must.NoError(r.DeleteByID(ctx, c.IDA.Get(a)))
			b := a
			c.ChangeEntity(t, &b)

			insert := func(ent ENT) (rErr error) {
				tx, err := p.BeginTx(ctx)
				if err != nil {
					return err
				}
				defer comproto.FinishOnePhaseCommit(&rErr, p, tx)
				exists, err := r.ExistsByID(tx, c.IDA.Get(ent))
				if err != nil {
					return err
				}
				if exists {
					return crud.AlreadyExists[ENT](c.IDA.Get(ent))
				}
				_, err = r.Save(tx, ent)
				return err
			}
			ents := []ENT{a, b}
			errs := make([]error, len(ents))
			testcase.Race(
				func() { errs[0] = insert(ents[0]) },
				func() { errs[1] = insert(ents[1]) },
			)

			var stored []ENT
			for i, err := range errs {
				if err == nil {
					stored = append(stored, ents[i])
				}
			}
			t.Must.Equal(1, len(stored), "exactly one transaction is expected to succeed")
			vs, err := r.FindAll(ctx)
			t.Must.NoError(err)
			t.Must.Equal(stored, vs)
		})

		s.Then("the transaction sees its own changes", func(t *testcase.T) {
			tx, err := cm(t).BeginTx(c.MakeContext(t))
			t.Must.NoError(err)
			defer func() { _ = cm(t).RollbackTx(tx) }()

			saved, err := repo.Get(t).Save(tx, c.MakeEntity(t))
			t.Must.NoError(err)
			got, found, err := repo.Get(t).FindByID(tx, c.IDA.Get(saved))
			t.Must.NoError(err)
			t.Must.True(found)
			t.Must.Equal(saved, got)
		})
	})
}
