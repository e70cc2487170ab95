package mapping_test

import (
	"testing"

	"github.com/binaryburst/entitykit/port/mapping"
	"go.llib.dev/testcase"
	"go.llib.dev/testcase/assert"
)

type (
	Book struct {
		ID     int
		Title  string
		Author Author
	}
	BookRecord struct {
		ID        int
		Title     string
		Author    AuthorRecord
		CreatedBy string
	}
	BookInput struct {
		ID     int
		Title  string
		Author AuthorDTO
	}
	BookOutput struct {
		ID     int
		Title  string
		Author AuthorDTO
	}

	Author       struct{ Name string }
	AuthorRecord struct{ FullName string }
	AuthorDTO    struct{ Name string }
)

var authorMapper = mapping.PartialFuncs[Author, AuthorRecord, AuthorDTO, AuthorDTO]{
	ToModel:    func(dto AuthorDTO) Author { return Author{Name: dto.Name} },
	ToDTO:      func(m Author) AuthorDTO { return AuthorDTO{Name: m.Name} },
	ToEntity:   func(m Author) AuthorRecord { return AuthorRecord{FullName: m.Name} },
	FromEntity: func(e AuthorRecord) Author { return Author{Name: e.FullName} },
}

func makeBookMapper(partial mapping.PartialMapper[Author, AuthorRecord, AuthorDTO, AuthorDTO]) mapping.Funcs[int, Book, BookRecord, BookInput, BookOutput] {
	return mapping.Funcs[int, Book, BookRecord, BookInput, BookOutput]{
		ToModel: func(dto BookInput) Book {
			return Book{ID: dto.ID, Title: dto.Title, Author: partial.DTOToModel(dto.Author)}
		},
		ToDTO: func(m Book) BookOutput {
			return BookOutput{ID: m.ID, Title: m.Title, Author: partial.ModelToDTO(m.Author)}
		},
		ToEntity: func(m Book) BookRecord {
			return BookRecord{ID: m.ID, Title: m.Title, Author: partial.ModelToEntity(m.Author)}
		},
		FromEntity: func(e BookRecord) Book {
			return Book{ID: e.ID, Title: e.Title, Author: partial.EntityToModel(e.Author)}
		},
		ModelID:     func(m Book) int { return m.ID },
		EntityID:    func(e BookRecord) int { return e.ID },
		SetEntityID: func(e *BookRecord, id int) { e.ID = id },
	}
}

var _ mapping.Mapper[int, Book, BookRecord, BookInput, BookOutput] = mapping.Funcs[int, Book, BookRecord, BookInput, BookOutput]{}

func TestFuncs(t *testing.T) {
	s := testcase.NewSpec(t)

	subject := testcase.Let(s, func(t *testcase.T) mapping.Funcs[int, Book, BookRecord, BookInput, BookOutput] {
		return makeBookMapper(authorMapper)
	})
	book := testcase.Let(s, func(t *testcase.T) Book {
		return Book{
			ID:     t.Random.IntBetween(1, 1000),
			Title:  t.Random.String(),
			Author: Author{Name: t.Random.String()},
		}
	})

	s.Test("entity round trip keeps every model field", func(t *testcase.T) {
		m := subject.Get(t)
		got := m.EntityToModel(m.ModelToEntity(book.Get(t)))
		t.Must.Equal(book.Get(t), got)
	})

	s.Test("dto round trip keeps every shared field", func(t *testcase.T) {
		m := subject.Get(t)
		in := BookInput{ID: book.Get(t).ID, Title: book.Get(t).Title, Author: AuthorDTO{Name: book.Get(t).Author.Name}}
		out := m.ModelToDTO(m.DTOToModel(in))
		t.Must.Equal(BookOutput(in), out)
	})

	s.Test("embedded partial is converted by the partial mapper", func(t *testcase.T) {
		ent := subject.Get(t).ModelToEntity(book.Get(t))
		t.Must.Equal(book.Get(t).Author.Name, ent.Author.FullName)
	})

	s.Test("EntityToDTO defaults to the composition of EntityToModel and ModelToDTO", func(t *testcase.T) {
		m := subject.Get(t)
		ent := m.ModelToEntity(book.Get(t))
		t.Must.Equal(m.ModelToDTO(m.EntityToModel(ent)), m.EntityToDTO(ent))
	})

	s.Describe("#ExtractID", func(s *testcase.Spec) {
		s.Then("a set ID is returned", func(t *testcase.T) {
			id, ok := subject.Get(t).ExtractID(book.Get(t))
			t.Must.True(ok)
			t.Must.Equal(book.Get(t).ID, id)
		})

		s.Then("the zero ID is reported as absent", func(t *testcase.T) {
			b := book.Get(t)
			b.ID = 0
			_, ok := subject.Get(t).ExtractID(b)
			t.Must.False(ok)
		})
	})

	s.Describe("#ApplyModel", func(s *testcase.Spec) {
		existing := testcase.Let(s, func(t *testcase.T) BookRecord {
			return BookRecord{
				ID:        t.Random.IntBetween(1000, 2000),
				Title:     t.Random.String(),
				Author:    AuthorRecord{FullName: t.Random.String()},
				CreatedBy: t.Random.String(),
			}
		})

		s.Then("the entity ID is preserved", func(t *testcase.T) {
			got := subject.Get(t).ApplyModel(existing.Get(t), book.Get(t))
			t.Must.Equal(existing.Get(t).ID, got.ID)
			t.Must.Equal(book.Get(t).Title, got.Title)
			t.Must.Equal(book.Get(t).Author.Name, got.Author.FullName)
		})

		s.When("an Apply function is provided", func(s *testcase.Spec) {
			subject.Let(s, func(t *testcase.T) mapping.Funcs[int, Book, BookRecord, BookInput, BookOutput] {
				m := makeBookMapper(authorMapper)
				m.Apply = func(e BookRecord, b Book) BookRecord {
					e.Title = b.Title
					e.Author = authorMapper.ApplyModel(e.Author, b.Author)
					return e
				}
				return m
			})

			s.Then("fields outside of the model are kept", func(t *testcase.T) {
				got := subject.Get(t).ApplyModel(existing.Get(t), book.Get(t))
				t.Must.Equal(existing.Get(t).CreatedBy, got.CreatedBy)
				t.Must.Equal(existing.Get(t).ID, got.ID)
				t.Must.Equal(book.Get(t).Title, got.Title)
			})
		})
	})
}

func TestSlice(t *testing.T) {
	got := mapping.Slice([]int{1, 2, 3}, func(v int) string { return string(rune('a' + v - 1)) })
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.NotNil(t, mapping.Slice([]int(nil), func(v int) int { return v }))
}
