// Command enqueue inserts a video asset and a pending transcode job so a
// running worker has something to pick up. Meant for manual testing against a
// local stack.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"video-transcode-worker/internal/config"
	"video-transcode-worker/internal/domain/model"
	pg "video-transcode-worker/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	sourceKey := flag.String("key", "", "object key of the uploaded source video (required)")
	assetID := flag.String("asset", "", "asset id (generated when empty)")
	qualities := flag.String("qualities", "", "comma-separated target qualities (defaults to the configured ladder)")
	priority := flag.Int("priority", 0, "claim priority, higher first")
	flag.Parse()

	if *sourceKey == "" {
		log.Fatal("-key is required")
	}

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	targets := cfg.QualityLadder().Names()
	if *qualities != "" {
		targets = strings.Split(*qualities, ",")
		for i := range targets {
			targets[i] = strings.TrimSpace(targets[i])
		}
		if _, err := cfg.QualityLadder().ResolveAll(targets); err != nil {
			log.Fatalf("qualities: %v", err)
		}
	}

	assetRepo := pg.NewAssetRepo(pool)
	jobRepo := pg.NewJobRepo(pool, pg.NewTxManager(pool))

	asset := &model.VideoAsset{ID: *assetID, ProcessingStatus: model.AssetStatusPending}
	if err := assetRepo.Save(ctx, nil, asset); err != nil {
		log.Fatalf("save asset: %v", err)
	}

	job := &model.TranscodeJob{
		AssetID:         asset.ID,
		Source:          model.SourceLocation{Bucket: cfg.Storage.SourceBucket, Key: *sourceKey},
		TargetQualities: targets,
		Status:          model.JobStatusPending,
		Priority:        *priority,
	}
	if err := jobRepo.Save(ctx, nil, job); err != nil {
		log.Fatalf("save job: %v", err)
	}

	fmt.Printf("enqueued job %s (asset=%s, source=%s/%s, qualities=%s, priority=%d)\n",
		job.ID, asset.ID, job.Source.Bucket, job.Source.Key, strings.Join(targets, ","), job.Priority)
}
