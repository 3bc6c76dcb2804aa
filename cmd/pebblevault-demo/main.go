package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/pebblevault/pebblevault/internal/config"
	"github.com/pebblevault/pebblevault/internal/eventbus"
	"github.com/pebblevault/pebblevault/internal/logging"
	"github.com/pebblevault/pebblevault/internal/observability"
	"github.com/pebblevault/pebblevault/internal/vault"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML-конфигурации")
	flag.Parse()

	if err := logging.InitLogger(); err != nil {
		log.Fatalf("ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseLogger()

	logging.LogInfo("запуск демо PebbleVault")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("ошибка загрузки конфигурации: %v", err)
	}

	shutdownTel, err := observability.InitTelemetry(context.Background(), "pebblevault-demo")
	if err != nil {
		logging.LogWarn("не удалось инициализировать OpenTelemetry: %v", err)
	}

	bus := eventbus.NewMemoryBus(256)
	eventbus.Init(bus)
	if err := eventbus.StartLoggingListener(bus); err != nil {
		logging.LogWarn("не удалось запустить LoggingListener: %v", err)
	}
	exporter := eventbus.NewMetricsExporter(bus)
	exporter.StartHTTP(fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()))
	defer exporter.Stop()

	ctx := context.Background()
	vm, err := vault.New(ctx, cfg.ToVaultConfig())
	if err != nil {
		log.Fatalf("ошибка инициализации VaultManager: %v", err)
	}

	regionID, err := vm.CreateOrLoadRegion(ctx, vault.Point{X: 0, Y: 0, Z: 0}, 1000)
	if err != nil {
		log.Fatalf("ошибка создания региона: %v", err)
	}
	logging.LogInfo("регион %s готов", regionID)

	objID, err := demoInsertObject(ctx, vm, regionID)
	if err != nil {
		log.Fatalf("ошибка добавления объекта: %v", err)
	}
	publishLifecycleEvent(ctx, "object_added", regionID.String(), objID.String())

	results, err := vm.QueryRegion(ctx, regionID, vault.Box{
		Min: vault.Point{X: -10, Y: -10, Z: -10},
		Max: vault.Point{X: 10, Y: 10, Z: 10},
	})
	if err != nil {
		log.Fatalf("ошибка запроса региона: %v", err)
	}
	logging.LogInfo("найдено %d объектов рядом с центром региона (включая %s)", len(results), objID)

	stats, err := vm.Stats(ctx)
	if err != nil {
		logging.LogWarn("не удалось получить статистику: %v", err)
	} else {
		fmt.Printf("regions=%d objects=%d dirty=%d\n", stats.RegionCount, stats.ObjectCount, stats.DirtyRegionCount)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	logging.LogInfo("ожидание сигнала завершения (Ctrl+C)")
	<-sigCh

	logging.LogInfo("остановка: финальный чекпоинт и закрытие хранилищ")
	if err := vm.Close(ctx); err != nil {
		logging.LogError("ошибка закрытия VaultManager: %v", err)
	}
	if shutdownTel != nil {
		_ = shutdownTel(ctx)
	}
}

func demoInsertObject(ctx context.Context, vm *vault.VaultManager, regionID vault.RegionID) (vault.ObjectID, error) {
	id := uuid.New()
	err := vm.AddObject(ctx, regionID, id, "player", vault.Point{X: 1, Y: 2, Z: 3}, []byte(`{"name":"demo"}`))
	return id, err
}

// publishLifecycleEvent отправляет уведомление о жизненном цикле объекта
// подписчикам глобальной шины (см. internal/eventbus).
func publishLifecycleEvent(ctx context.Context, eventType, regionID, objectID string) {
	_ = eventbus.Publish(ctx, &eventbus.Envelope{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Source:    "pebblevault-demo",
		EventType: eventType,
		Metadata: map[string]string{
			"region_id": regionID,
			"object_id": objectID,
		},
	})
}
