package httpapi

import (
	"context"
	"net/http"

	"github.com/binaryburst/entitykit/pkg/controller"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"go.llib.dev/frameless/pkg/logging"
)

// DefaultBodyReadLimit caps the request body a resource endpoint reads.
const DefaultBodyReadLimit = 16 << 20

// Resource exposes a Controller as a JSON resource under a gin route group.
//
//	GET    /           list
//	POST   /           create
//	DELETE /           delete all
//	POST   /batch      add all
//	PUT    /batch      update all
//	GET    /:id        show
//	PUT    /:id        update
//	DELETE /:id        delete
type Resource[ID comparable, M, E, I, O any] struct {
	Controller controller.Controller[ID, M, E, I, O]
	// ParseID turns the :id path parameter into an ID.
	// A parse failure is answered with 400 Bad Request.
	ParseID func(string) (ID, error)
	// BodyReadLimit [optional]
	//
	// default: DefaultBodyReadLimit
	BodyReadLimit int
	// Logger [optional]
	Logger *logging.Logger
}

// Mount registers the resource endpoints on r under path.
func Mount[ID comparable, M, E, I, O any](r gin.IRouter, path string, res Resource[ID, M, E, I, O]) {
	g := r.Group(path)
	g.GET("", res.list)
	g.POST("", res.create)
	g.DELETE("", res.deleteAll)
	g.POST("/batch", res.addAll)
	g.PUT("/batch", res.updateAll)
	g.GET("/:id", res.show)
	g.PUT("/:id", res.update)
	g.DELETE("/:id", res.delete)
}

func (res Resource[ID, M, E, I, O]) list(c *gin.Context) {
	respond(c, res.Controller.List(c.Request.Context()))
}

func (res Resource[ID, M, E, I, O]) show(c *gin.Context) {
	id, ok := res.id(c)
	if !ok {
		return
	}
	respond(c, res.Controller.Get(c.Request.Context(), id))
}

func (res Resource[ID, M, E, I, O]) create(c *gin.Context) {
	var dto I
	if !res.bind(c, &dto) {
		return
	}
	respond(c, res.Controller.Create(c.Request.Context(), dto))
}

func (res Resource[ID, M, E, I, O]) update(c *gin.Context) {
	id, ok := res.id(c)
	if !ok {
		return
	}
	var dto I
	if !res.bind(c, &dto) {
		return
	}
	respond(c, res.Controller.Update(c.Request.Context(), id, dto))
}

func (res Resource[ID, M, E, I, O]) delete(c *gin.Context) {
	id, ok := res.id(c)
	if !ok {
		return
	}
	respond(c, res.Controller.Delete(c.Request.Context(), id))
}

func (res Resource[ID, M, E, I, O]) deleteAll(c *gin.Context) {
	respond(c, res.Controller.DeleteAll(c.Request.Context()))
}

func (res Resource[ID, M, E, I, O]) addAll(c *gin.Context) {
	var dtos []I
	if !res.bind(c, &dtos) {
		return
	}
	respond(c, res.Controller.AddAll(c.Request.Context(), dtos))
}

func (res Resource[ID, M, E, I, O]) updateAll(c *gin.Context) {
	var dtos []I
	if !res.bind(c, &dtos) {
		return
	}
	respond(c, res.Controller.UpdateAll(c.Request.Context(), dtos))
}

func (res Resource[ID, M, E, I, O]) id(c *gin.Context) (ID, bool) {
	raw := c.Param("id")
	id, err := res.ParseID(raw)
	if err != nil {
		res.malformed(c.Request.Context(), c, controller.ErrMalformedRequest.F("invalid id %q: %v", raw, err))
		return id, false
	}
	return id, true
}

func (res Resource[ID, M, E, I, O]) bind(c *gin.Context, ptr any) bool {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, int64(res.bodyReadLimit()))
	if err := json.NewDecoder(body).Decode(ptr); err != nil {
		res.malformed(c.Request.Context(), c, controller.ErrMalformedRequest.Wrap(err))
		return false
	}
	return true
}

func (res Resource[ID, M, E, I, O]) malformed(ctx context.Context, c *gin.Context, err error) {
	res.logger().Debug(ctx, "invalid request", logging.ErrField(err))
	c.AbortWithStatus(controller.StatusFor(err))
}

func (res Resource[ID, M, E, I, O]) bodyReadLimit() int {
	if res.BodyReadLimit != 0 {
		return res.BodyReadLimit
	}
	return DefaultBodyReadLimit
}

func (res Resource[ID, M, E, I, O]) logger() *logging.Logger {
	if res.Logger != nil {
		return res.Logger
	}
	return discard
}

// respond writes a controller response. Failures are answered with the status code alone.
func respond[T any](c *gin.Context, r controller.Response[T]) {
	switch {
	case r.Err != nil:
		c.AbortWithStatus(r.Status)
	case r.HasBody:
		c.JSON(r.Status, r.Body)
	default:
		c.Status(r.Status)
	}
}
