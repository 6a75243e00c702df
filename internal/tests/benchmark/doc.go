// Package benchmark provides performance benchmarks for filekv.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Compare the cost of a durable commit across document sizes:
//
//	go test -bench=BenchmarkCommit -benchmem -count=5 ./internal/tests/benchmark/... | tee commit.txt
//
// Compare results:
//
//	benchstat old.txt new.txt
package benchmark
