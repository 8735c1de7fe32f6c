package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"go-firestore-sentiment/internal/api"
	"go-firestore-sentiment/internal/config"
	ierr "go-firestore-sentiment/internal/errors"
	"go-firestore-sentiment/internal/model"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// seedProduct is one entry of a seed file. A file holds a single object or an array.
type seedProduct struct {
	Url      string         `json:"productUrl"`
	Platform model.Platform `json:"platform"`
	Name     string         `json:"productName"`
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <products.json>",
		Short: "Register products from a JSON file and leave their first scrape to the backfill listener",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			seeds, err := readSeedFile(args[0])
			if err != nil {
				return err
			}

			if cnf.StoreBackend == config.StoreMemory {
				log.Warn().Msg("seeding the in-memory store, products are lost when the command exits")
			}

			a, err := newApp(ctx, cnf)
			if err != nil {
				return err
			}
			defer a.Close()

			var registered []model.Product
			for _, s := range seeds {
				platform := s.Platform
				if platform == "" {
					platform = model.PlatformInstagram
				}

				product, err := api.Register(ctx, a.scrapers, a.products, s.Url, platform, s.Name)
				if errors.Is(err, ierr.AlreadyExists) {
					log.Info().Str("url", s.Url).Msg("product already registered")
					continue
				}
				if err != nil {
					return fmt.Errorf("register product: %w, url: %s", err, s.Url)
				}
				log.Info().Str("productId", product.Id).Str("platform", string(platform)).Msg("product registered")
				registered = append(registered, product)
			}

			return printJSON(cmd.OutOrStdout(), registered)
		},
	}
}

func readSeedFile(path string) ([]seedProduct, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var seeds []seedProduct
		if err := json.Unmarshal(data, &seeds); err != nil {
			return nil, fmt.Errorf("decode seed file: %w", err)
		}
		return normalizeSeeds(seeds), nil
	}

	var seed seedProduct
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return normalizeSeeds([]seedProduct{seed}), nil
}

func normalizeSeeds(seeds []seedProduct) []seedProduct {
	for i := range seeds {
		seeds[i].Url = strings.TrimSpace(seeds[i].Url)
		seeds[i].Platform = model.Platform(strings.ToLower(strings.TrimSpace(string(seeds[i].Platform))))
	}
	return seeds
}
