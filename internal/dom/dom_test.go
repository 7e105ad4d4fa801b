package dom

import (
	"testing"

	"golang.org/x/net/html/atom"
)

func TestParseFragmentAndFind(t *testing.T) {
	root := ParseFragment(`<ul><li id="a"><a href="x">X</a></li><li id="b"><span>meta</span></li></ul>`)

	items := FindAll(root, IsTag(atom.Li))
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if Attr(items[0], "id") != "a" || Attr(items[1], "id") != "b" {
		t.Error("expected document order a, b")
	}
	if ByID(root, "b") != items[1] {
		t.Error("ByID did not find #b")
	}
	if First(items[1], IsTag(atom.A)) != nil {
		t.Error("expected no link in #b")
	}
	if got := TextContent(items[0]); got != "X" {
		t.Errorf("expected X, got %q", got)
	}
}

func TestParseFragmentGarbage(t *testing.T) {
	root := ParseFragment("<<<>>> </li></ul> \x00")
	if root == nil {
		t.Fatal("expected a container")
	}
	if len(FindAll(root, IsTag(atom.Li))) != 0 {
		t.Error("expected no list items")
	}
}

func TestClearAndRender(t *testing.T) {
	ul := Element(atom.Ul, "class", "grid-list")
	Append(ul, Append(Element(atom.Li), Text("a & b")), Element(atom.Li))

	if got := Render(ul); got != `<ul class="grid-list"><li>a &amp; b</li><li></li></ul>` {
		t.Errorf("unexpected render %s", got)
	}
	if got := InnerHTML(ul); got != `<li>a &amp; b</li><li></li>` {
		t.Errorf("unexpected inner html %s", got)
	}

	Clear(ul)
	if ul.FirstChild != nil {
		t.Error("expected no children after Clear")
	}
	if got := Render(ul); got != `<ul class="grid-list"></ul>` {
		t.Errorf("unexpected render after clear %s", got)
	}
}

func TestToggleClass(t *testing.T) {
	n := Element(atom.A, "class", "tab active")
	ToggleClass(n, "active", false)
	if HasClass(n, "active") || !HasClass(n, "tab") {
		t.Errorf("unexpected classes %q", Attr(n, "class"))
	}
	ToggleClass(n, "active", true)
	ToggleClass(n, "active", true)
	if Attr(n, "class") != "tab active" {
		t.Errorf("expected 'tab active', got %q", Attr(n, "class"))
	}
	ToggleClass(n, "tab", false)
	ToggleClass(n, "active", false)
	if len(n.Attr) != 0 {
		t.Errorf("expected class attribute removed, got %v", n.Attr)
	}
}

func TestSetAttr(t *testing.T) {
	n := Element(atom.Img, "src", "a")
	SetAttr(n, "src", "b")
	SetAttr(n, "alt", "c")
	if Render(n) != `<img src="b" alt="c"/>` {
		t.Errorf("unexpected render %s", Render(n))
	}
}
