package main

import (
	"context"
	"flag"
	"log"

	"anisync/config"
	"anisync/models"
	"anisync/services/store"
)

func main() {
	var (
		configPath = flag.String("config", "cache/settings.json", "Path to settings.json")
		mediaType  = flag.String("type", "anime", "Catalog to dump (anime|manga)")
	)
	flag.Parse()

	mgr := config.NewManager(*configPath)
	settings, err := mgr.Load()
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}

	t := models.TypeAnime
	if *mediaType == "manga" {
		t = models.TypeManga
	}

	catalog, err := store.Open(settings.Database.Path, settings.Export.Directory)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer catalog.Close()

	path, err := catalog.Export(context.Background(), t)
	if err != nil {
		log.Fatalf("export %s catalog: %v", t, err)
	}
	log.Printf("wrote %s", path)
}
