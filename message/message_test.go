package message

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/leadscout/lead"
)

// recorder answers every request with OK and remembers the last type.
type recorder struct {
	last  Type
	block chan struct{}
}

func (r *recorder) rec(ctx context.Context, t Type) Response {
	r.last = t
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
		}
	}
	return Response{OK: true}
}

func (r *recorder) AuthStatus(ctx context.Context, _ AuthStatus) Response {
	return r.rec(ctx, TypeAuthStatus)
}
func (r *recorder) OpportunityFound(ctx context.Context, _ OpportunityFound) Response {
	return r.rec(ctx, TypeOpportunityFound)
}
func (r *recorder) GroupCanInject(ctx context.Context, _ GroupCanInject) Response {
	return r.rec(ctx, TypeGroupCanInject)
}
func (r *recorder) GroupEnable(ctx context.Context, _ GroupEnable) Response {
	return r.rec(ctx, TypeGroupEnable)
}
func (r *recorder) GroupDisable(ctx context.Context, _ GroupDisable) Response {
	return r.rec(ctx, TypeGroupDisable)
}
func (r *recorder) ListGroups(ctx context.Context, _ ListGroups) Response {
	return r.rec(ctx, TypeListGroups)
}
func (r *recorder) RemoveGroup(ctx context.Context, _ RemoveGroup) Response {
	return r.rec(ctx, TypeRemoveGroup)
}
func (r *recorder) SettingsGet(ctx context.Context, _ SettingsGet) Response {
	return r.rec(ctx, TypeSettingsGet)
}
func (r *recorder) SettingsSetActiveProfile(ctx context.Context, _ SettingsSetActiveProfile) Response {
	return r.rec(ctx, TypeSettingsSetActiveProfile)
}
func (r *recorder) ProfilesList(ctx context.Context, _ ProfilesList) Response {
	return r.rec(ctx, TypeProfilesList)
}
func (r *recorder) ProfilesGet(ctx context.Context, _ ProfilesGet) Response {
	return r.rec(ctx, TypeProfilesGet)
}
func (r *recorder) ProfilesUpsert(ctx context.Context, _ ProfilesUpsert) Response {
	return r.rec(ctx, TypeProfilesUpsert)
}
func (r *recorder) ProfilesRemove(ctx context.Context, _ ProfilesRemove) Response {
	return r.rec(ctx, TypeProfilesRemove)
}
func (r *recorder) AutorunStatus(ctx context.Context, _ AutorunStatus) Response {
	return r.rec(ctx, TypeAutorunStatus)
}
func (r *recorder) AutorunStart(ctx context.Context, _ AutorunStart) Response {
	return r.rec(ctx, TypeAutorunStart)
}
func (r *recorder) AutorunStop(ctx context.Context, _ AutorunStop) Response {
	return r.rec(ctx, TypeAutorunStop)
}
func (r *recorder) AutorunReset(ctx context.Context, _ AutorunReset) Response {
	return r.rec(ctx, TypeAutorunReset)
}
func (r *recorder) LeadsList(ctx context.Context, _ LeadsList) Response {
	return r.rec(ctx, TypeLeadsList)
}
func (r *recorder) LeadsPatch(ctx context.Context, _ LeadsPatch) Response {
	return r.rec(ctx, TypeLeadsPatch)
}
func (r *recorder) LeadsRemove(ctx context.Context, _ LeadsRemove) Response {
	return r.rec(ctx, TypeLeadsRemove)
}
func (r *recorder) LeadsClear(ctx context.Context, _ LeadsClear) Response {
	return r.rec(ctx, TypeLeadsClear)
}

func TestDecode_EveryRegisteredTypeDispatches(t *testing.T) {
	h := &recorder{}
	for typ := range decoders {
		req, err := Decode([]byte(`{"type":"` + string(typ) + `"}`))
		if err != nil {
			t.Fatalf("Decode(%s): %v", typ, err)
		}
		if req.Type() != typ {
			t.Errorf("Decode(%s): got type %s", typ, req.Type())
		}
		Dispatch(context.Background(), h, req)
		if h.last != typ {
			t.Errorf("Dispatch(%s): handler saw %s", typ, h.last)
		}
	}
}

func TestDecode_Fields(t *testing.T) {
	req, err := Decode([]byte(`{"type":"GROUP_ENABLE","slug":"foo","url":"https://www.facebook.com/groups/foo/"}`))
	if err != nil {
		t.Fatal(err)
	}
	en, ok := req.(GroupEnable)
	if !ok {
		t.Fatalf("got %T, want GroupEnable", req)
	}
	if en.Slug != "foo" || en.URL != "https://www.facebook.com/groups/foo/" {
		t.Errorf("got %+v", en)
	}
}

func TestDecode_Unknown(t *testing.T) {
	_, err := Decode([]byte(`{"type":"SELF_DESTRUCT"}`))
	if !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("got %v, want ErrUnknownMessage", err)
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, raw := range []string{`not json`, `{"type":"GROUP_ENABLE","slug":42}`} {
		if _, err := Decode([]byte(raw)); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("Decode(%s): got %v, want ErrInvalidRequest", raw, err)
		}
	}
}

func TestEncode_FlatEnvelope(t *testing.T) {
	status := lead.StatusContacted
	data, err := Encode(LeadsPatch{Key: "u:x", Status: &status})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"LEADS_PATCH","key":"u:x","status":"contacted"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	data, err = Encode(AuthStatus{})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"type":"AUTH_STATUS"}` {
		t.Errorf("empty request: got %s", data)
	}

	back, err := Decode(data)
	if err != nil || back.Type() != TypeAuthStatus {
		t.Errorf("decode encoded: got %v, %v", back, err)
	}
}

func TestEncode_Opportunity(t *testing.T) {
	data, err := Encode(OpportunityFound{Payload: Opportunity{
		Slug: "foo", GroupURL: "g", ProfileName: "Designer",
		Post: lead.Post{Author: "Ana", Text: "logo", Timestamp: 1},
	}})
	if err != nil {
		t.Fatal(err)
	}
	req, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	got := req.(OpportunityFound).Payload
	if got.Slug != "foo" || got.Post.Author != "Ana" || got.Post.Text != "logo" {
		t.Errorf("got %+v", got)
	}
}

func TestCall_Timeout(t *testing.T) {
	h := &recorder{block: make(chan struct{})}
	defer close(h.block)

	resp := Call(context.Background(), Local(h), AuthStatus{}, 20*time.Millisecond)
	if resp.OK || resp.Code != CodeTimeout {
		t.Fatalf("got %+v, want TIMEOUT", resp)
	}
}

func TestCall_TransportError(t *testing.T) {
	s := SenderFunc(func(context.Context, Request) (Response, error) {
		return Response{}, errors.New("connection refused")
	})
	resp := Call(context.Background(), s, ListGroups{}, time.Second)
	if resp.Code != CodeError || !strings.Contains(resp.Error, "refused") {
		t.Errorf("got %+v", resp)
	}
}

func TestLocal_Success(t *testing.T) {
	h := &recorder{}
	resp := Call(context.Background(), Local(h), SettingsGet{}, time.Second)
	if !resp.OK || h.last != TypeSettingsGet {
		t.Errorf("got %+v, last %s", resp, h.last)
	}
}

func TestResponseErr(t *testing.T) {
	if err := (Response{OK: true}).Err(); err != nil {
		t.Errorf("ok response: got %v", err)
	}
	err := Fail(CodeLimitReached, "5 active").Err()
	if CodeOf(err) != CodeLimitReached {
		t.Errorf("CodeOf: got %q", CodeOf(err))
	}
	if CodeOf(Response{}.Err()) != CodeError {
		t.Errorf("empty code should default to ERROR")
	}
}

func TestResponse_FalseAndNullFieldsKept(t *testing.T) {
	raw, err := json.Marshal(Response{OK: true, Active: 5, Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	out := string(raw)
	for _, want := range []string{`"allowed":false`, `"existing":null`, `"removed":false`, `"activeCount":5`, `"limit":5`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}
