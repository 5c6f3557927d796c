package crm

import (
	"context"
	"sync"

	"crm-bridge/internal/hubspot"
)

type call struct {
	op         string
	objectType string
	id         string
	body       hubspot.ObjectInput
	search     hubspot.SearchRequest
}

// fakeClient records every request and answers from per-operation hooks.
type fakeClient struct {
	mu    sync.Mutex
	calls []call

	list      func(objectType string) (hubspot.Page, error)
	search    func(req hubspot.SearchRequest) (hubspot.Page, error)
	create    func(objectType string, in hubspot.ObjectInput) (hubspot.Object, error)
	update    func(id string, in hubspot.ObjectInput) (hubspot.Object, error)
	delete    func(id string) error
	associate func(callID, contactID string) error
}

func (f *fakeClient) log(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeClient) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op + " " + c.objectType
	}
	return out
}

func (f *fakeClient) last(op string) call {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].op == op {
			return f.calls[i]
		}
	}
	return call{}
}

func (f *fakeClient) ListObjects(ctx context.Context, objectType string, limit int) (hubspot.Page, error) {
	f.log(call{op: "list", objectType: objectType})
	if f.list == nil {
		return hubspot.Page{}, nil
	}
	return f.list(objectType)
}

func (f *fakeClient) SearchObjects(ctx context.Context, objectType string, req hubspot.SearchRequest) (hubspot.Page, error) {
	f.log(call{op: "search", objectType: objectType, search: req})
	if f.search == nil {
		return hubspot.Page{}, nil
	}
	return f.search(req)
}

func (f *fakeClient) CreateObject(ctx context.Context, objectType string, in hubspot.ObjectInput) (hubspot.Object, error) {
	f.log(call{op: "create", objectType: objectType, body: in})
	if f.create == nil {
		return hubspot.Object{ID: "new", Properties: in.Properties}, nil
	}
	return f.create(objectType, in)
}

func (f *fakeClient) UpdateObject(ctx context.Context, objectType, id string, in hubspot.ObjectInput) (hubspot.Object, error) {
	f.log(call{op: "update", objectType: objectType, id: id, body: in})
	if f.update == nil {
		return hubspot.Object{ID: id, Properties: in.Properties}, nil
	}
	return f.update(id, in)
}

func (f *fakeClient) DeleteObject(ctx context.Context, objectType, id string) error {
	f.log(call{op: "delete", objectType: objectType, id: id})
	if f.delete == nil {
		return nil
	}
	return f.delete(id)
}

func (f *fakeClient) Associate(ctx context.Context, fromType, fromID, toType, toID, label string) error {
	f.log(call{op: "associate", objectType: fromType, id: fromID + "->" + toID})
	if f.associate == nil {
		return nil
	}
	return f.associate(fromID, toID)
}
