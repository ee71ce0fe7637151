package planner

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/John-Robertt/deckprice/internal/domain"
)

func entry(name string, qty int, src domain.VendorID, url, price string) domain.OutputEntry {
	e := domain.OutputEntry{Name: name, Quantity: qty, Source: src, URL: url}
	if price != "" {
		e.UnitPrice = decimal.NewNullDecimal(decimal.RequireFromString(price))
	}
	return e
}

func isProxy(id domain.VendorID) bool { return id == domain.VendorBootlegMage }

func fixture() []domain.OutputEntry {
	return []domain.OutputEntry{
		entry("Sol Ring", 1, domain.VendorBootlegMage, "https://bootlegmage.example/sol-ring", "1.00"),
		entry("Fire // Ice", 2, domain.VendorTCGPlayer, "https://tcg.example/fire", "0.40"),
		entry("Nope", 1, domain.VendorTCGPlayer, "", ""),
		entry("Plains", 4, domain.VendorTCGPlayer, "https://tcg.example/plains", "0.10"),
	}
}

func TestPlanPurchase_MassImportExcludesProxyShop(t *testing.T) {
	p := PlanPurchase(fixture(), Options{MassImport: true, IsProxyShop: isProxy})

	var got []string
	for _, l := range p.MassImport {
		got = append(got, l.String())
	}
	want := []string{"2 Fire", "1 Nope", "4 Plains"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("mass import 行不符合预期：got=%v want=%v", got, want)
	}
	if p.Tabs != nil {
		t.Fatalf("未启用浏览器时不应有 tabs：%v", p.Tabs)
	}
}

func TestPlanPurchase_TabsWithMassImportOnlyProxy(t *testing.T) {
	p := PlanPurchase(fixture(), Options{MassImport: true, OpenBrowser: true, IsProxyShop: isProxy})

	want := []string{"https://bootlegmage.example/sol-ring"}
	if !reflect.DeepEqual(p.Tabs, want) {
		t.Fatalf("tabs 不符合预期：got=%v want=%v", p.Tabs, want)
	}
}

func TestPlanPurchase_TabsWithoutMassImport(t *testing.T) {
	entries := append(fixture(), entry("Sol Ring Again", 1, domain.VendorBootlegMage, "https://bootlegmage.example/sol-ring", "1.00"))
	p := PlanPurchase(entries, Options{OpenBrowser: true, IsProxyShop: isProxy})

	want := []string{
		"https://bootlegmage.example/sol-ring",
		"https://tcg.example/fire",
		"https://tcg.example/plains",
	}
	if !reflect.DeepEqual(p.Tabs, want) {
		t.Fatalf("tabs 不符合预期（应跳过空链接并去重）：got=%v want=%v", p.Tabs, want)
	}
	if p.MassImport != nil {
		t.Fatalf("未启用 mass import 时不应生成行：%v", p.MassImport)
	}
}

func TestPlanPurchase_NilPredicate(t *testing.T) {
	p := PlanPurchase(fixture(), Options{MassImport: true})
	if len(p.MassImport) != 4 {
		t.Fatalf("没有代理店判定时应保留全部条目，实际 %d", len(p.MassImport))
	}
}
