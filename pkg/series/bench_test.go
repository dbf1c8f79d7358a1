package series

import (
	"context"
	"fmt"
	"testing"

	"overnight.com/pkg/market"
)

// benchRepo n 个品种，每个两张季月合约，一年的合成 5 分钟线
func benchRepo(b *testing.B, symbols int) (*market.MemoryRepository, []string) {
	b.Helper()
	repo := market.NewMemoryRepository()
	from, to := d("2023-01-02"), d("2023-12-29")

	codes := make([]string, 0, symbols)
	for i := 0; i < symbols; i++ {
		code := fmt.Sprintf("S%02d", i)
		codes = append(codes, code)
		repo.SetRule(market.RolloverRule{SymbolCode: code, Type: market.RuleBeforeExpiry, Days: 5})

		near := repo.AddContract(market.Contract{SymbolCode: code, MonthCode: "M", Year: 2023, ExpiryDate: ptr(d("2023-06-16"))})
		far := repo.AddContract(market.Contract{SymbolCode: code, MonthCode: "Z", Year: 2023, ExpiryDate: ptr(d("2023-12-15"))})
		repo.AddBars(market.NewSynth(near.ID, 100, int64(i)).Range(from, d("2023-06-16"))...)
		repo.AddBars(market.NewSynth(far.ID, 101, int64(i)+1000).Range(from, to)...)
	}
	return repo, codes
}

func BenchmarkBuild(b *testing.B) {
	repo, codes := benchRepo(b, 8)
	builder := NewBuilder(repo, repo, repo, nil, nil)
	opts := Options{Symbols: codes, Start: d("2023-02-01"), End: d("2023-11-30"), Workers: 4}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := builder.Build(context.Background(), opts); err != nil {
			b.Fatal(err)
		}
	}
}
