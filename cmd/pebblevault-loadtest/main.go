package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pebblevault/pebblevault/internal/config"
	"github.com/pebblevault/pebblevault/internal/logging"
	"github.com/pebblevault/pebblevault/internal/vault"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML-конфигурации")
	workers := flag.Int("workers", 16, "количество параллельных воркеров")
	objectsPerWorker := flag.Int("objects", 200, "объектов на воркера")
	duration := flag.Duration("duration", 30*time.Second, "длительность нагрузочного теста")
	flag.Parse()

	if err := logging.InitLogger(); err != nil {
		log.Fatalf("ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("ошибка загрузки конфигурации: %v", err)
	}

	ctx := context.Background()
	vm, err := vault.New(ctx, cfg.ToVaultConfig())
	if err != nil {
		log.Fatalf("ошибка инициализации VaultManager: %v", err)
	}
	defer vm.Close(ctx)

	regionID, err := vm.CreateOrLoadRegion(ctx, vault.Point{}, 5000)
	if err != nil {
		log.Fatalf("ошибка создания региона: %v", err)
	}

	var (
		added   int64
		queried int64
		moved   int64
		errs    int64
	)

	runCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			runWorker(runCtx, vm, regionID, *objectsPerWorker, &added, &queried, &moved, &errs)
		}(w)
	}
	wg.Wait()

	stats, err := vm.Stats(ctx)
	if err != nil {
		logging.LogWarn("не удалось получить итоговую статистику: %v", err)
	}

	logging.LogInfo(
		"нагрузочный тест завершён: added=%d queried=%d moved=%d errors=%d | regions=%d objects=%d",
		atomic.LoadInt64(&added), atomic.LoadInt64(&queried), atomic.LoadInt64(&moved), atomic.LoadInt64(&errs),
		stats.RegionCount, stats.ObjectCount,
	)
}

func runWorker(ctx context.Context, vm *vault.VaultManager, regionID vault.RegionID, n int, added, queried, moved, errs *int64) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ids := make([]vault.ObjectID, 0, n)

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		id := uuid.New()
		pos := randomPoint(rng, 4000)
		if err := vm.AddObject(ctx, regionID, id, "loadtest", pos, nil); err != nil {
			atomic.AddInt64(errs, 1)
			continue
		}
		ids = append(ids, id)
		atomic.AddInt64(added, 1)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if len(ids) == 0 {
			return
		}

		id := ids[rng.Intn(len(ids))]
		switch rng.Intn(3) {
		case 0:
			box := randomBox(rng, 4000)
			if _, err := vm.QueryRegion(ctx, regionID, box); err != nil {
				atomic.AddInt64(errs, 1)
			} else {
				atomic.AddInt64(queried, 1)
			}
		case 1:
			obj, err := vm.GetObject(ctx, id)
			if err != nil {
				atomic.AddInt64(errs, 1)
				continue
			}
			obj.Position = randomPoint(rng, 4000)
			if err := vm.UpdateObject(ctx, obj); err != nil {
				atomic.AddInt64(errs, 1)
			} else {
				atomic.AddInt64(moved, 1)
			}
		case 2:
			if _, err := vm.GetObject(ctx, id); err != nil {
				atomic.AddInt64(errs, 1)
			}
		}
	}
}

func randomPoint(rng *rand.Rand, span float64) vault.Point {
	return vault.Point{
		X: rng.Float64()*span - span/2,
		Y: rng.Float64()*span - span/2,
		Z: rng.Float64()*span - span/2,
	}
}

func randomBox(rng *rand.Rand, span float64) vault.Box {
	center := randomPoint(rng, span)
	half := rng.Float64()*50 + 1
	return vault.Box{
		Min: vault.Point{X: center.X - half, Y: center.Y - half, Z: center.Z - half},
		Max: vault.Point{X: center.X + half, Y: center.Y + half, Z: center.Z + half},
	}
}
