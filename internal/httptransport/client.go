// Package httptransport is the concrete net/http-backed implementation of
// gateway.Transport: it knows the upstream's URL shapes, auth header, and
// JSON wire format for pages and properties. Everything rate-limit/retry
// related lives one layer up in internal/gateway.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	wgerrors "github.com/kestrel-labs/workspacegraph/internal/errors"
	"github.com/kestrel-labs/workspacegraph/internal/gateway"
	"github.com/kestrel-labs/workspacegraph/internal/workspace"
)

// Client is the default Transport: a thin REST client against the
// upstream workspace API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return wgerrors.Internal("marshalling request body", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return wgerrors.Internal("building upstream request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wgerrors.UpstreamTransient("upstream request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return wgerrors.UpstreamTransient("reading upstream response", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return wgerrors.UpstreamTransient(fmt.Sprintf("upstream returned %d", resp.StatusCode), fmt.Errorf("%s", string(respBody)))
	case resp.StatusCode >= 400:
		return wgerrors.UpstreamPermanent(fmt.Sprintf("upstream returned %d", resp.StatusCode), fmt.Errorf("%s", string(respBody)))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return wgerrors.Internal("decoding upstream response", err)
	}
	return nil
}

// wirePage / wireProperty mirror the upstream's JSON page shape. Only the
// subset the mediator consumes is modeled.
type wirePage struct {
	ID         string                    `json:"id"`
	DatabaseID string                    `json:"database_id"`
	Archived   bool                      `json:"archived"`
	Properties map[string]wireProperty   `json:"properties"`
}

type wireProperty struct {
	Type        string              `json:"type"`
	Title       []wireRichText      `json:"title,omitempty"`
	RichText    []wireRichText      `json:"rich_text,omitempty"`
	Select      *wireOption         `json:"select,omitempty"`
	Status      *wireOption         `json:"status,omitempty"`
	MultiSelect []wireOption        `json:"multi_select,omitempty"`
	Relation    []wireRelationItem  `json:"relation,omitempty"`
	HasMore     bool                `json:"has_more,omitempty"`
	Rollup      *wireRollup         `json:"rollup,omitempty"`
	Date        *wireDate           `json:"date,omitempty"`
	Formula     *wireFormula        `json:"formula,omitempty"`
	URL         *string             `json:"url,omitempty"`
	Files       []wireFile          `json:"files,omitempty"`
	LastEditedTime *string          `json:"last_edited_time,omitempty"`
	CreatedTime    *string          `json:"created_time,omitempty"`
}

type wireRichText struct {
	PlainText string `json:"plain_text"`
}

type wireOption struct {
	Name string `json:"name"`
}

type wireRelationItem struct {
	ID string `json:"id"`
}

type wireRollup struct {
	Type   string         `json:"type"`
	Array  []wireProperty `json:"array,omitempty"`
	Number *float64       `json:"number,omitempty"`
}

type wireDate struct {
	Start string `json:"start"`
}

type wireFormula struct {
	Type    string   `json:"type"`
	String  *string  `json:"string,omitempty"`
	Number  *float64 `json:"number,omitempty"`
	Boolean *bool    `json:"boolean,omitempty"`
}

type wireFile struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func decodeWireProperty(name string, w wireProperty) workspace.Property {
	p := workspace.Property{Name: name, Kind: workspace.PropertyKind(w.Type)}
	switch workspace.PropertyKind(w.Type) {
	case workspace.PropertyTitle:
		p.RichText = toRichText(w.Title)
	case workspace.PropertyRichText:
		p.RichText = toRichText(w.RichText)
	case workspace.PropertySelect:
		if w.Select != nil {
			p.Select = &w.Select.Name
		}
	case workspace.PropertyStatus:
		if w.Status != nil {
			p.Select = &w.Status.Name
		}
	case workspace.PropertyMultiSelect:
		for _, o := range w.MultiSelect {
			p.MultiSelect = append(p.MultiSelect, o.Name)
		}
	case workspace.PropertyRelation:
		for _, r := range w.Relation {
			if id, err := workspace.NormalizeID(r.ID); err == nil {
				p.RelationIDs = append(p.RelationIDs, id)
			}
		}
		p.RelationMore = w.HasMore
	case workspace.PropertyRollup:
		if w.Rollup != nil {
			rv := &workspace.RollupValue{Type: w.Rollup.Type, Number: w.Rollup.Number}
			for _, elem := range w.Rollup.Array {
				rv.Array = append(rv.Array, decodeWireProperty(name, elem))
			}
			p.Rollup = rv
		}
	case workspace.PropertyDate:
		if w.Date != nil {
			p.DateStart = &w.Date.Start
		}
	case workspace.PropertyFormula:
		if w.Formula != nil {
			p.FormulaString = w.Formula.String
			p.FormulaNumber = w.Formula.Number
			p.FormulaBool = w.Formula.Boolean
		}
	case workspace.PropertyURL:
		p.URL = w.URL
	case workspace.PropertyFiles:
		for _, f := range w.Files {
			p.Files = append(p.Files, workspace.FileRef{Name: f.Name, URL: f.URL})
		}
	case workspace.PropertyLastEditedTime:
		p.Timestamp = w.LastEditedTime
	case workspace.PropertyCreatedTime:
		p.Timestamp = w.CreatedTime
	}
	return p
}

func toRichText(in []wireRichText) []workspace.RichTextFragment {
	out := make([]workspace.RichTextFragment, 0, len(in))
	for _, r := range in {
		out = append(out, workspace.RichTextFragment{PlainText: r.PlainText})
	}
	return out
}

func (w wirePage) toPage() workspace.Page {
	page := workspace.Page{
		ID:         w.ID,
		DatabaseID: w.DatabaseID,
		Archived:   w.Archived,
		Properties: make(map[string]workspace.Property, len(w.Properties)),
	}
	if id, err := workspace.NormalizeID(w.ID); err == nil {
		page.ID = id
	}
	for name, prop := range w.Properties {
		page.Properties[name] = decodeWireProperty(name, prop)
	}
	return page
}

func encodeProperties(properties map[string]workspace.Property) map[string]wireProperty {
	out := make(map[string]wireProperty, len(properties))
	for name, p := range properties {
		w := wireProperty{Type: string(p.Kind)}
		switch p.Kind {
		case workspace.PropertyTitle:
			w.Title = fromRichText(p.RichText)
		case workspace.PropertyRichText:
			w.RichText = fromRichText(p.RichText)
		case workspace.PropertySelect:
			if p.Select != nil {
				w.Select = &wireOption{Name: *p.Select}
			}
		case workspace.PropertyStatus:
			if p.Select != nil {
				w.Status = &wireOption{Name: *p.Select}
			}
		case workspace.PropertyMultiSelect:
			for _, name := range p.MultiSelect {
				w.MultiSelect = append(w.MultiSelect, wireOption{Name: name})
			}
		case workspace.PropertyRelation:
			for _, id := range p.RelationIDs {
				w.Relation = append(w.Relation, wireRelationItem{ID: id})
			}
		case workspace.PropertyDate:
			if p.DateStart != nil {
				w.Date = &wireDate{Start: *p.DateStart}
			}
		case workspace.PropertyURL:
			w.URL = p.URL
		case workspace.PropertyFiles:
			for _, f := range p.Files {
				w.Files = append(w.Files, wireFile{Name: f.Name, URL: f.URL})
			}
		}
		out[name] = w
	}
	return out
}

func fromRichText(in []workspace.RichTextFragment) []wireRichText {
	out := make([]wireRichText, 0, len(in))
	for _, r := range in {
		out = append(out, wireRichText{PlainText: r.PlainText})
	}
	return out
}

func (c *Client) QueryDatabase(ctx context.Context, databaseID string, cursor string, pageSize int, filter interface{}) (gateway.QueryResult, error) {
	body := map[string]interface{}{
		"page_size": pageSize,
	}
	if cursor != "" {
		body["start_cursor"] = cursor
	}
	if filter != nil {
		body["filter"] = filter
	}

	var resp struct {
		Results    []wirePage `json:"results"`
		NextCursor string     `json:"next_cursor"`
		HasMore    bool       `json:"has_more"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/databases/"+databaseID+"/query", body, &resp); err != nil {
		return gateway.QueryResult{}, err
	}

	pages := make([]workspace.Page, 0, len(resp.Results))
	for _, wp := range resp.Results {
		pages = append(pages, wp.toPage())
	}
	return gateway.QueryResult{Pages: pages, NextCursor: resp.NextCursor, HasMore: resp.HasMore}, nil
}

func (c *Client) RetrievePage(ctx context.Context, id string) (workspace.Page, error) {
	var wp wirePage
	if err := c.do(ctx, http.MethodGet, "/v1/pages/"+id, nil, &wp); err != nil {
		return workspace.Page{}, err
	}
	return wp.toPage(), nil
}

func (c *Client) RetrieveProperty(ctx context.Context, pageID, propertyID, cursor string) (gateway.PropertyPage, error) {
	path := fmt.Sprintf("/v1/pages/%s/properties/%s", pageID, propertyID)
	if cursor != "" {
		path += "?start_cursor=" + cursor
	}
	var resp struct {
		Results    []wireRelationItem `json:"results"`
		NextCursor string             `json:"next_cursor"`
		HasMore    bool               `json:"has_more"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return gateway.PropertyPage{}, err
	}
	ids := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if id, err := workspace.NormalizeID(r.ID); err == nil {
			ids = append(ids, id)
		}
	}
	return gateway.PropertyPage{RelationIDs: ids, NextCursor: resp.NextCursor, HasMore: resp.HasMore}, nil
}

func (c *Client) UpdatePage(ctx context.Context, id string, properties map[string]workspace.Property) (workspace.Page, error) {
	body := map[string]interface{}{"properties": encodeProperties(properties)}
	var wp wirePage
	if err := c.do(ctx, http.MethodPatch, "/v1/pages/"+id, body, &wp); err != nil {
		return workspace.Page{}, err
	}
	return wp.toPage(), nil
}

func (c *Client) CreatePage(ctx context.Context, parentDatabaseID string, properties map[string]workspace.Property) (workspace.Page, error) {
	body := map[string]interface{}{
		"parent":     map[string]string{"database_id": parentDatabaseID},
		"properties": encodeProperties(properties),
	}
	var wp wirePage
	if err := c.do(ctx, http.MethodPost, "/v1/pages", body, &wp); err != nil {
		return workspace.Page{}, err
	}
	return wp.toPage(), nil
}

func (c *Client) ArchivePage(ctx context.Context, id string) (workspace.Page, error) {
	body := map[string]interface{}{"archived": true}
	var wp wirePage
	if err := c.do(ctx, http.MethodPatch, "/v1/pages/"+id, body, &wp); err != nil {
		return workspace.Page{}, err
	}
	return wp.toPage(), nil
}
