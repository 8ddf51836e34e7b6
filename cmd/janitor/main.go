// janitor: purga filas viejas que el bot ya no necesita. Pensado para
// correr por cron, separado del proceso del bot.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("faltante env DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	// plantillas soft-deleted hace más de 30 días: afuera
	tag, err := pool.Exec(ctx, `
DELETE FROM channel_templates
 WHERE deleted_at IS NOT NULL
   AND deleted_at < now() - INTERVAL '30 days'`)
	if err != nil {
		log.Fatalf("purge: %v", err)
	}
	log.Printf("[janitor] plantillas purgadas n=%d", tag.RowsAffected())
}
