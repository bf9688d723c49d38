/*
main.go - CSV bulk import CLI

PURPOSE:
  Seeds the registry database from HR and inventory CSV exports. Each file
  runs as one transaction and leaves an audit row in import_runs.

USAGE:
  importer -db=registry.db -services=services.csv -employes=export_rh.csv
  importer -db=registry.db -materiels=inventaire.csv

FLAGS:
  -db         SQLite database path, overrides DB_PATH
  -services   department CSV (nom, description)
  -employes   employee CSV (nom, service, email, telephone)
  -materiels  equipment CSV (type, modele, serie, serviceAchat, prixAchat)

SEE ALSO:
  - importer/importer.go: parsing and normalization
*/
package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sedima/asset-registry/config"
	"github.com/sedima/asset-registry/importer"
	"github.com/sedima/asset-registry/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	servicesPath := flag.String("services", "", "department CSV (nom, description)")
	employesPath := flag.String("employes", "", "employee CSV export")
	materielsPath := flag.String("materiels", "", "equipment CSV export")
	flag.Parse()

	log := zap.Must(zap.NewProduction())
	defer log.Sync()

	if *servicesPath == "" && *employesPath == "" && *materielsPath == "" {
		log.Fatal("nothing to import: pass -services, -employes and/or -materiels")
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal("database initialization failed", zap.Error(err))
	}
	defer store.Close()

	im := importer.New(store, log, uuid.NewString)
	ctx := context.Background()

	if *servicesPath != "" {
		importFile(ctx, log, store, *servicesPath, "services", im.ImportServices)
	}
	if *employesPath != "" {
		importFile(ctx, log, store, *employesPath, "employes", im.ImportEmployees)
	}
	if *materielsPath != "" {
		importFile(ctx, log, store, *materielsPath, "materiels", im.ImportEquipment)
	}
}

func importFile(
	ctx context.Context,
	log *zap.Logger,
	store *sqlite.Store,
	path, kind string,
	load func(context.Context, io.Reader) (*importer.Result, error),
) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatal("open failed", zap.String("fichier", path), zap.Error(err))
	}
	defer f.Close()

	result, err := load(ctx, f)
	if err != nil {
		log.Fatal("import failed", zap.String("fichier", path), zap.Error(err))
	}

	if err := store.RecordImportRun(ctx, sqlite.ImportRun{
		ID:           result.RunID,
		Source:       path,
		Kind:         kind,
		RowsImported: result.Imported,
		RowsSkipped:  result.Skipped,
	}); err != nil {
		log.Error("audit row failed", zap.Error(err))
	}

	log.Info("import done",
		zap.String("fichier", path),
		zap.String("kind", kind),
		zap.String("run_id", result.RunID),
		zap.Int("importes", result.Imported),
		zap.Int("ignores", result.Skipped))
}
