package transportecho

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kestrel-labs/workspacegraph/internal/entity"
	wgerrors "github.com/kestrel-labs/workspacegraph/internal/errors"
	"github.com/kestrel-labs/workspacegraph/internal/router"
)

// parentRelationHint is the wire shape of the reserved "_parentRelation"
// key a create request may carry, naming the parent entity and field to
// atomically link the new entity into.
type parentRelationHint struct {
	ParentKind string `json:"parentKind"`
	ParentID   string `json:"parentId"`
	FieldKey   string `json:"fieldKey"`
}

// decodeEntityRequest unmarshals a create/update request body into T and
// returns the top-level field names the caller actually sent, so the
// Router only ever touches fields explicitly mentioned. The reserved
// "_parentRelation" key is consumed here and never counted as an entity
// field.
func decodeEntityRequest[T any](body []byte) (T, []string, *router.ParentRelation, error) {
	var zero T
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return zero, nil, nil, err
	}

	var parentRel *router.ParentRelation
	if hintRaw, ok := raw["_parentRelation"]; ok {
		var hint parentRelationHint
		if err := json.Unmarshal(hintRaw, &hint); err != nil {
			return zero, nil, nil, err
		}
		parentRel = &router.ParentRelation{
			ParentKind: entity.Kind(hint.ParentKind),
			ParentID:   hint.ParentID,
			FieldKey:   hint.FieldKey,
		}
		delete(raw, "_parentRelation")
	}

	fields := make([]string, 0, len(raw))
	for k := range raw {
		fields = append(fields, k)
	}

	var value T
	if err := json.Unmarshal(body, &value); err != nil {
		return zero, nil, nil, err
	}
	return value, fields, parentRel, nil
}

// stampCacheHeaders sets the advisory cache headers shared by every read
// response.
func stampCacheHeaders(c echo.Context, hit bool, version uint64) {
	c.Response().Header().Set("X-Cache-Hit", strconv.FormatBool(hit))
	c.Response().Header().Set("X-Cache-Version", strconv.FormatUint(version, 10))
}

// RegisterEntityRoutes binds the five CRUD operations for one entity kind
// onto e under prefix (e.g. "/characters"). Generic over T so one call
// site serves all four entity kinds without per-kind handler duplication.
func RegisterEntityRoutes[T any](e *echo.Echo, prefix string, kind entity.Kind, r *router.Router[T]) {
	e.GET(prefix, func(c echo.Context) error {
		limit, _ := strconv.Atoi(c.QueryParam("limit"))
		bypass := c.QueryParam("bypassCache") == "true"
		result, err := r.List(c.Request().Context(), limit, c.QueryParam("cursor"), nil, bypass)
		if err != nil {
			return err
		}
		stampCacheHeaders(c, result.CacheHit, result.Version)
		c.Response().Header().Set("X-Entity-Type", string(kind))
		return c.JSON(http.StatusOK, result)
	})

	e.GET(prefix+"/:id", func(c echo.Context) error {
		bypass := c.QueryParam("bypassCache") == "true"
		value, version, hit, err := r.Get(c.Request().Context(), c.Param("id"), bypass)
		if err != nil {
			return err
		}
		stampCacheHeaders(c, hit, version)
		c.Response().Header().Set("X-Entity-Type", string(kind))
		c.Response().Header().Set("X-Entity-Version", strconv.FormatUint(version, 10))
		return c.JSON(http.StatusOK, value)
	})

	e.POST(prefix, func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return wgerrors.Internal("reading request body", err)
		}
		partial, fields, parentRel, err := decodeEntityRequest[T](body)
		if err != nil {
			return wgerrors.Validation("MALFORMED_BODY", "decoding request body: "+err.Error())
		}
		created, err := r.Create(c.Request().Context(), partial, fields, parentRel)
		if err != nil {
			return err
		}
		c.Response().Header().Set("X-Entity-Type", string(kind))
		return c.JSON(http.StatusCreated, created)
	})

	e.PATCH(prefix+"/:id", func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return wgerrors.Internal("reading request body", err)
		}
		partial, fields, _, err := decodeEntityRequest[T](body)
		if err != nil {
			return wgerrors.Validation("MALFORMED_BODY", "decoding request body: "+err.Error())
		}
		updated, d, err := r.Update(c.Request().Context(), c.Param("id"), partial, fields)
		if err != nil {
			return err
		}
		c.Response().Header().Set("X-Entity-Type", string(kind))
		return c.JSON(http.StatusOK, map[string]interface{}{"entity": updated, "delta": d})
	})

	e.DELETE(prefix+"/:id", func(c echo.Context) error {
		archived, d, err := r.Archive(c.Request().Context(), c.Param("id"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"archived": archived, "delta": d})
	})
}

// RegisterGraphRoute binds GET /graph, stamping the graph-specific
// advisory headers (X-Graph-Build-Time, X-Total-Nodes, X-Total-Edges)
// alongside the shared cache headers.
func RegisterGraphRoute(e *echo.Echo, svc *router.GraphService) {
	e.GET("/graph", func(c echo.Context) error {
		bypass := c.QueryParam("bypassCache") == "true"
		graph, hit, buildTime, err := svc.GetCompleteGraph(c.Request().Context(), bypass)
		if err != nil {
			return err
		}
		stampCacheHeaders(c, hit, 0)
		c.Response().Header().Set("X-Graph-Build-Time", buildTime.String())
		c.Response().Header().Set("X-Total-Nodes", strconv.Itoa(len(graph.Nodes)))
		c.Response().Header().Set("X-Total-Edges", strconv.Itoa(len(graph.Edges)))
		return c.JSON(http.StatusOK, graph)
	})
}
