package types

import (
	"context"
	"encoding/json"
	"testing"
)

// TestInterfaces verifies that the interfaces can be implemented
func TestInterfaces(t *testing.T) {
	var _ Backend = (*mockBackend)(nil)
}

type mockBackend struct{}

func (m *mockBackend) HeadObject(ctx context.Context, key string) (map[string]string, error) {
	return nil, nil
}

func (m *mockBackend) ListPage(ctx context.Context, prefix, marker string, maxKeys int) (ListPage, error) {
	return ListPage{}, nil
}

func (m *mockBackend) GetObject(ctx context.Context, key string) ([]byte, error) {
	return nil, nil
}

func (m *mockBackend) HealthCheck(ctx context.Context) error {
	return nil
}

func TestListPageJSON(t *testing.T) {
	page := ListPage{
		Entries: []ListEntry{
			{Name: "dir/a.txt", ETag: `"e1"`},
			{Name: "dir/sub/", IsDir: true},
		},
		Truncated: true,
	}

	data, err := json.Marshal(page)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if raw["truncated"] != true {
		t.Errorf("truncated = %v, want true", raw["truncated"])
	}
	if _, ok := raw["next_marker"]; ok {
		t.Error("empty next_marker should be omitted")
	}
	entries, ok := raw["entries"].([]interface{})
	if !ok || len(entries) != 2 {
		t.Fatalf("entries = %v, want 2 items", raw["entries"])
	}
}
