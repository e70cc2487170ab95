package httpapi_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/binaryburst/entitykit/adapter/httpapi"
	"github.com/binaryburst/entitykit/adapter/memory"
	"github.com/binaryburst/entitykit/pkg/controller"
	"github.com/binaryburst/entitykit/pkg/service"
	"github.com/binaryburst/entitykit/port/crud"
	"github.com/binaryburst/entitykit/port/mapping"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"go.llib.dev/testcase"
)

func init() { gin.SetMode(gin.TestMode) }

type (
	Book struct {
		ID    int64
		Title string
	}
	BookEntity struct {
		ID    int64
		Title string
	}
	BookDTO struct {
		ID    int64  `json:"id,omitempty"`
		Title string `json:"title"`
	}
)

var bookMapper = mapping.Funcs[int64, Book, BookEntity, BookDTO, BookDTO]{
	ToModel:     func(dto BookDTO) Book { return Book(dto) },
	ToDTO:       func(m Book) BookDTO { return BookDTO(m) },
	ToEntity:    func(m Book) BookEntity { return BookEntity(m) },
	FromEntity:  func(e BookEntity) Book { return Book(e) },
	ModelID:     func(m Book) int64 { return m.ID },
	EntityID:    func(e BookEntity) int64 { return e.ID },
	SetEntityID: func(e *BookEntity, id int64) { e.ID = id },
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

func TestResource(t *testing.T) {
	s := testcase.NewSpec(t)

	ready := testcase.Let(s, func(t *testcase.T) error { return nil })
	handler := testcase.Let(s, func(t *testcase.T) http.Handler {
		svc := service.New[int64, Book, BookEntity, BookDTO, BookDTO](
			memory.NewRepository(memory.NewMemory(), crud.IDAccessor[BookEntity, int64]{
				Get: func(e BookEntity) int64 { return e.ID },
				Set: func(e *BookEntity, id int64) { e.ID = id },
			}),
			bookMapper,
			nil,
		)
		svc.Validate = func(_ context.Context, b Book) error {
			if strings.TrimSpace(b.Title) == "" {
				return errors.New("title is required")
			}
			return nil
		}
		router := httpapi.NewRouter(httpapi.Options{
			Ready: func(context.Context) error { return ready.Get(t) },
		})
		httpapi.Mount(router, "/books", httpapi.Resource[int64, Book, BookEntity, BookDTO, BookDTO]{
			Controller: controller.New(svc, func(b *Book, id int64) { b.ID = id }, nil),
			ParseID:    parseID,
		})
		return router
	})

	do := func(t *testcase.T, method, path, body string) *httptest.ResponseRecorder {
		var r *http.Request
		if body == "" {
			r = httptest.NewRequest(method, path, nil)
		} else {
			r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
			r.Header.Set("Content-Type", "application/json")
		}
		w := httptest.NewRecorder()
		handler.Get(t).ServeHTTP(w, r)
		return w
	}

	create := func(t *testcase.T, title string) BookDTO {
		w := do(t, http.MethodPost, "/books", `{"title":"`+title+`"}`)
		t.Must.Equal(http.StatusCreated, w.Code)
		var out BookDTO
		t.Must.NoError(json.Unmarshal(w.Body.Bytes(), &out))
		return out
	}

	path := func(id int64) string { return "/books/" + strconv.FormatInt(id, 10) }

	s.Test("list on an empty store is an empty JSON array", func(t *testcase.T) {
		w := do(t, http.MethodGet, "/books", "")
		t.Must.Equal(http.StatusOK, w.Code)
		t.Must.Equal("[]", strings.TrimSpace(w.Body.String()))
	})

	s.Test("create then get", func(t *testcase.T) {
		out := create(t, "Dune")
		t.Must.NotEqual(int64(0), out.ID)

		w := do(t, http.MethodGet, path(out.ID), "")
		t.Must.Equal(http.StatusOK, w.Code)
		var got BookDTO
		t.Must.NoError(json.Unmarshal(w.Body.Bytes(), &got))
		t.Must.Equal(out, got)
	})

	s.Test("get of an unknown ID is 404 without body", func(t *testcase.T) {
		w := do(t, http.MethodGet, "/books/42", "")
		t.Must.Equal(http.StatusNotFound, w.Code)
		t.Must.Empty(w.Body.String())
	})

	s.Test("a non numeric ID is 400", func(t *testcase.T) {
		t.Must.Equal(http.StatusBadRequest, do(t, http.MethodGet, "/books/abc", "").Code)
		t.Must.Equal(http.StatusBadRequest, do(t, http.MethodDelete, "/books/abc", "").Code)
	})

	s.Test("a malformed body is 400", func(t *testcase.T) {
		t.Must.Equal(http.StatusBadRequest, do(t, http.MethodPost, "/books", `{"title":`).Code)
		t.Must.Equal(http.StatusBadRequest, do(t, http.MethodPost, "/books/batch", `{}`).Code)
	})

	s.Test("a blank title fails validation with 400", func(t *testcase.T) {
		t.Must.Equal(http.StatusBadRequest, do(t, http.MethodPost, "/books", `{"title":" "}`).Code)
	})

	s.Test("create with a taken ID is 409", func(t *testcase.T) {
		out := create(t, "Dune")
		w := do(t, http.MethodPost, "/books", `{"id":`+strconv.FormatInt(out.ID, 10)+`,"title":"Other"}`)
		t.Must.Equal(http.StatusConflict, w.Code)
	})

	s.Test("update takes the path ID when the body has none", func(t *testcase.T) {
		out := create(t, "Dune")
		w := do(t, http.MethodPut, path(out.ID), `{"title":"Dune Messiah"}`)
		t.Must.Equal(http.StatusOK, w.Code)
		var got BookDTO
		t.Must.NoError(json.Unmarshal(w.Body.Bytes(), &got))
		t.Must.Equal(BookDTO{ID: out.ID, Title: "Dune Messiah"}, got)
	})

	s.Test("update with a different body ID is 400", func(t *testcase.T) {
		out := create(t, "Dune")
		w := do(t, http.MethodPut, path(out.ID), `{"id":`+strconv.FormatInt(out.ID+1, 10)+`,"title":"x"}`)
		t.Must.Equal(http.StatusBadRequest, w.Code)
	})

	s.Test("update of an unknown ID is 404", func(t *testcase.T) {
		t.Must.Equal(http.StatusNotFound, do(t, http.MethodPut, "/books/42", `{"title":"x"}`).Code)
	})

	s.Test("delete is 204 and a repeated delete is 404", func(t *testcase.T) {
		out := create(t, "Dune")
		t.Must.Equal(http.StatusNoContent, do(t, http.MethodDelete, path(out.ID), "").Code)
		t.Must.Equal(http.StatusNotFound, do(t, http.MethodDelete, path(out.ID), "").Code)
	})

	s.Test("delete all empties the resource", func(t *testcase.T) {
		create(t, "a")
		create(t, "b")
		t.Must.Equal(http.StatusNoContent, do(t, http.MethodDelete, "/books", "").Code)
		w := do(t, http.MethodGet, "/books", "")
		t.Must.Equal("[]", strings.TrimSpace(w.Body.String()))
	})

	s.Test("batch add returns the stored books in input order", func(t *testcase.T) {
		w := do(t, http.MethodPost, "/books/batch", `[{"title":"a"},{"title":"b"}]`)
		t.Must.Equal(http.StatusOK, w.Code)
		var out []BookDTO
		t.Must.NoError(json.Unmarshal(w.Body.Bytes(), &out))
		t.Must.Equal(2, len(out))
		t.Must.Equal("a", out[0].Title)
		t.Must.Equal("b", out[1].Title)
		t.Must.NotEqual(int64(0), out[0].ID)
	})

	s.Test("batch update fails as a whole on an unknown ID", func(t *testcase.T) {
		out := create(t, "a")
		body := `[{"id":` + strconv.FormatInt(out.ID, 10) + `,"title":"changed"},{"id":999,"title":"x"}]`
		t.Must.Equal(http.StatusNotFound, do(t, http.MethodPut, "/books/batch", body).Code)

		w := do(t, http.MethodGet, path(out.ID), "")
		var got BookDTO
		t.Must.NoError(json.Unmarshal(w.Body.Bytes(), &got))
		t.Must.Equal("a", got.Title)
	})

	s.Test("probes", func(t *testcase.T) {
		t.Must.Equal(http.StatusOK, do(t, http.MethodGet, "/livez", "").Code)
		t.Must.Equal(http.StatusOK, do(t, http.MethodGet, "/readyz", "").Code)
	})

	s.Test("readyz reports a failing store", func(t *testcase.T) {
		ready.Set(t, errors.New("store is down"))
		t.Must.Equal(http.StatusServiceUnavailable, do(t, http.MethodGet, "/readyz", "").Code)
	})

	s.Test("metrics count the served requests by route", func(t *testcase.T) {
		create(t, "a")
		w := do(t, http.MethodGet, "/metrics", "")
		t.Must.Equal(http.StatusOK, w.Code)
		t.Must.Contain(w.Body.String(), `entitykit_http_requests_total{code="201",method="POST",route="/books"} 1`)
	})
}
