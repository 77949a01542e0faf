// Package search mirrors user records into an Elasticsearch index. It plugs
// into the response hook pipeline like any third-party caller would: no route
// handler knows it exists, and unbinding it changes nothing else.
package search

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/halcyonlab/usergate/internal/domain/entity"
	"github.com/halcyonlab/usergate/internal/hooks"
)

type Indexer struct {
	ES     *elasticsearch.Client
	Index  string
	Logger *logrus.Logger
}

func NewIndexer(es *elasticsearch.Client, index string, logger *logrus.Logger) *Indexer {
	return &Indexer{ES: es, Index: index, Logger: logger}
}

// Bind registers the mirror on the routes that change user records.
func (ix *Indexer) Bind(b *hooks.Binder) error {
	if err := b.Bind(hooks.Response, []string{"signup", "updateUser"}, ix.indexHook); err != nil {
		return err
	}
	return b.On(hooks.Response, "deleteUser", ix.deleteHook)
}

// indexHook mirrors the public user projection from the response body.
// Mirroring is best effort; failures are logged and never block the response.
func (ix *Indexer) indexHook(req *hooks.RequestInfo, res *hooks.ResponseInfo, advance hooks.Advance) {
	if u, ok := userFromBody(res); ok {
		ix.indexUser(u)
	}
	advance(nil)
}

func (ix *Indexer) deleteHook(req *hooks.RequestInfo, res *hooks.ResponseInfo, advance hooks.Advance) {
	if id, ok := idFromBody(res); ok {
		ix.deleteUser(id)
	}
	advance(nil)
}

func userFromBody(res *hooks.ResponseInfo) (entity.PublicUser, bool) {
	data, ok := res.Body["data"].(map[string]any)
	if !ok {
		return entity.PublicUser{}, false
	}
	u, ok := data["user"].(entity.PublicUser)
	return u, ok
}

func idFromBody(res *hooks.ResponseInfo) (string, bool) {
	data, ok := res.Body["data"].(map[string]any)
	if !ok {
		return "", false
	}
	id, ok := data["id"].(string)
	return id, ok
}

func (ix *Indexer) indexUser(u entity.PublicUser) {
	doc := map[string]any{
		"id":          u.ID,
		"firstname":   u.Firstname,
		"lastname":    u.Lastname,
		"fullname":    u.Fullname,
		"username":    u.Username,
		"email":       u.Email,
		"signup_date": u.SignupDate.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: ix.Index, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	resp, err := req.Do(ctx, ix.ES)
	if err != nil {
		ix.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.IsError() {
		ix.Logger.WithField("status", resp.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
}

func (ix *Indexer) deleteUser(id string) {
	req := esapi.DeleteRequest{Index: ix.Index, DocumentID: id}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	resp, err := req.Do(ctx, ix.ES)
	if err != nil {
		ix.Logger.WithError(err).WithField("user_id", id).Warn("es delete failed")
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.IsError() && resp.StatusCode != 404 {
		ix.Logger.WithField("status", resp.Status()).WithField("user_id", id).Warn("es delete response error")
	}
}
