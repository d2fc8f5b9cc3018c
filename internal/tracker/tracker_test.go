package tracker

import (
	"context"
	"testing"
)

func fixedClock() func() string {
	return func() string { return "2026-01-01T00:00:00Z" }
}

func TestMemoryAdapter_CreateGetUpdateClose(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAdapter(fixedClock())

	item, err := m.Create(ctx, "fix the bug", "details")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.Status != StatusOpen {
		t.Fatalf("expected new item open, got %s", item.Status)
	}

	got, err := m.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "fix the bug" {
		t.Fatalf("unexpected title %q", got.Title)
	}

	updated, err := m.Update(ctx, item.ID, "more details")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != StatusInProgress {
		t.Fatalf("expected in_progress after update, got %s", updated.Status)
	}

	closed, err := m.Close(ctx, item.ID)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.Status != StatusClosed {
		t.Fatalf("expected closed, got %s", closed.Status)
	}
}

func TestMemoryAdapter_CloseFiresOnClose(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAdapter(fixedClock())
	item, _ := m.Create(ctx, "t", "")

	var fired ClosureEvent
	m.OnClose = func(e ClosureEvent) { fired = e }

	if _, err := m.Close(ctx, item.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if fired.ItemID != item.ID {
		t.Fatalf("expected closure event for %s, got %+v", item.ID, fired)
	}
}

func TestMemoryAdapter_DependencyAndDiscoveredFromParent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAdapter(fixedClock())

	parent, _ := m.Create(ctx, "parent", "")
	child1, _ := m.Create(ctx, "child1", "")
	child2, _ := m.Create(ctx, "child2", "")

	if err := m.AddDependency(ctx, Dependency{FromID: parent.ID, ToID: child1.ID, Kind: DepDiscoveredFrom}); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	if err := m.AddDependency(ctx, Dependency{FromID: parent.ID, ToID: child2.ID, Kind: DepDiscoveredFrom}); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	children, err := m.DiscoveredFromParent(ctx, parent.ID)
	if err != nil {
		t.Fatalf("DiscoveredFromParent: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 discovered children, got %d", len(children))
	}
}

func TestMemoryAdapter_ParentChildSetsParent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAdapter(fixedClock())

	parent, _ := m.Create(ctx, "parent", "")
	child, _ := m.Create(ctx, "child", "")

	if err := m.AddDependency(ctx, Dependency{FromID: parent.ID, ToID: child.ID, Kind: DepParentChild}); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	got, err := m.Get(ctx, child.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Parent != parent.ID {
		t.Fatalf("expected parent set to %s, got %q", parent.ID, got.Parent)
	}
}

func TestMemoryAdapter_ExportListsAll(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAdapter(fixedClock())
	m.Create(ctx, "a", "")
	m.Create(ctx, "b", "")

	items, err := m.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 exported items, got %d", len(items))
	}
}

func TestClassify_OpenUnseenIsCreated(t *testing.T) {
	kind := classify(logLine{ItemID: "i1", Status: StatusOpen}, false)
	if kind != EventCreated {
		t.Fatalf("expected created, got %s", kind)
	}
}

func TestClassify_OpenSeenIsUpdated(t *testing.T) {
	kind := classify(logLine{ItemID: "i1", Status: StatusOpen}, true)
	if kind != EventUpdated {
		t.Fatalf("expected updated, got %s", kind)
	}
}

func TestClassify_ClosedAlwaysClosed(t *testing.T) {
	kind := classify(logLine{ItemID: "i1", Status: StatusClosed}, true)
	if kind != EventClosed {
		t.Fatalf("expected closed, got %s", kind)
	}
}

func TestRouteFor_DefaultsToNone(t *testing.T) {
	rules := compileRoutingRules(DefaultRouting())
	if dest := routeFor(rules, EventClosed, "anything"); dest != RouteFile {
		t.Fatalf("expected closed -> file, got %s", dest)
	}
	if dest := routeFor(rules, EventCreated, "anything"); dest != RouteNone {
		t.Fatalf("expected created -> none by default, got %s", dest)
	}
}

func TestRouteFor_TitleGlobRestrictsRule(t *testing.T) {
	rules := compileRoutingRules([]RoutingRule{
		{Kind: EventClosed, TitleGlob: "security:*", Destination: RouteCommentOnItem},
		{Kind: EventClosed, Destination: RouteFile},
	})

	if dest := routeFor(rules, EventClosed, "security: rotate leaked token"); dest != RouteCommentOnItem {
		t.Fatalf("expected title glob match to win, got %s", dest)
	}
	if dest := routeFor(rules, EventClosed, "fix a typo"); dest != RouteFile {
		t.Fatalf("expected non-matching title to fall through to the next rule, got %s", dest)
	}
}

func TestRouteFor_InvalidTitleGlobIsIgnored(t *testing.T) {
	rules := compileRoutingRules([]RoutingRule{
		{Kind: EventClosed, TitleGlob: "[", Destination: RouteCommentOnItem},
	})
	if dest := routeFor(rules, EventClosed, "anything"); dest != RouteCommentOnItem {
		t.Fatalf("expected malformed glob to degrade to an unconditional match, got %s", dest)
	}
}

func TestUnwrapItem_ObjectAndArrayOfOne(t *testing.T) {
	obj, err := unwrapItem([]byte(`{"id":"i1","title":"t","status":"open","created_at":"x","updated_at":"x"}`))
	if err != nil {
		t.Fatalf("unwrapItem object: %v", err)
	}
	if obj.ID != "i1" {
		t.Fatalf("unexpected id %q", obj.ID)
	}

	arr, err := unwrapItem([]byte(`[{"id":"i2","title":"t","status":"open","created_at":"x","updated_at":"x"}]`))
	if err != nil {
		t.Fatalf("unwrapItem array: %v", err)
	}
	if arr.ID != "i2" {
		t.Fatalf("unexpected id %q", arr.ID)
	}
}
