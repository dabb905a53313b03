package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/gladys-ai/gladys/pkg/config"
	"github.com/gladys-ai/gladys/pkg/vectorindex"
)

// Cache dispatches the `cache stats|list|flush|evict` subcommands
// against the configured Qdrant collection, the heuristic-embedding
// index Memory queries for spec §4.2's similarity lookups.
func Cache(args []string, cfg *config.Config) error {
	if len(args) == 0 {
		return fmt.Errorf("cache: expected a subcommand (stats|list|flush|evict)")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := vectorindex.Connect(cfg.QdrantDSN)
	if err != nil {
		return fmt.Errorf("cache: connect: %w", err)
	}
	defer client.Close()

	switch args[0] {
	case "stats":
		return cacheStats(ctx, client, cfg.QdrantCollection)
	case "list":
		return cacheList(ctx, client, cfg.QdrantCollection, args[1:])
	case "flush":
		return cacheFlush(ctx, client, cfg.QdrantCollection)
	case "evict":
		return cacheEvict(ctx, client, cfg.QdrantCollection, args[1:])
	default:
		return fmt.Errorf("cache: unknown subcommand %q", args[0])
	}
}

func cacheStats(ctx context.Context, client *qdrant.Client, collection string) error {
	info, err := client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return fmt.Errorf("cache stats: %w", err)
	}
	points := "unknown"
	if info.GetPointsCount() > 0 || info.PointsCount != nil {
		points = fmt.Sprintf("%d", info.GetPointsCount())
	}
	fmt.Printf("collection=%s status=%s points=%s\n", collection, info.GetStatus().String(), points)
	return nil
}

func cacheList(ctx context.Context, client *qdrant.Client, collection string, args []string) error {
	limit := uint32(20)
	if len(args) > 0 {
		fmt.Sscanf(args[0], "%d", &limit)
	}
	points, err := client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return fmt.Errorf("cache list: %w", err)
	}
	for _, p := range points {
		id := p.GetId().GetUuid()
		if original, ok := p.GetPayload()[vectorindex.PayloadIDField]; ok {
			id = original.GetStringValue()
		}
		fmt.Printf("%s\n", id)
	}
	fmt.Printf("(%d points)\n", len(points))
	return nil
}

// cacheFlush drops the collection entirely; the owning service
// recreates it empty the next time it calls vectorindex.New.
func cacheFlush(ctx context.Context, client *qdrant.Client, collection string) error {
	if err := client.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("cache flush: %w", err)
	}
	fmt.Printf("collection %s dropped; it will be recreated empty on next service start\n", collection)
	return nil
}

func cacheEvict(ctx context.Context, client *qdrant.Client, collection string, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("cache evict: expected one or more ids")
	}
	for _, id := range ids {
		_, err := client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(vectorindex.ToPointID(id))),
		})
		if err != nil {
			return fmt.Errorf("cache evict %s: %w", id, err)
		}
		fmt.Printf("evicted %s\n", id)
	}
	return nil
}
