package main

import (
	"fmt"

	"menucrawler/crawler/internal/config"
	"menucrawler/crawler/internal/domain"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// selectorFlags holds the selector set given on the command line
type selectorFlags struct {
	preset string
	set    domain.SelectorSet
}

func (f *selectorFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.preset, "preset", "p", "", "Selector preset to start from (auto-detected from the URL when empty)")
	flags.StringVar(&f.set.Container, "container", "", "CSS selector of the menu container")
	flags.StringVar(&f.set.Item, "item", "", "CSS selector of a menu item inside the container")
	flags.StringVar(&f.set.Name, "name", "", "CSS selector of the item name")
	flags.StringVar(&f.set.Description, "description", "", "CSS selector of the item description")
	flags.StringVar(&f.set.Price, "price", "", "CSS selector of the item price")
	flags.StringVar(&f.set.Image, "image", "", "CSS selector of the item image")
}

// resolve merges explicit selectors over the chosen or detected preset.
// Explicit flags always win.
func (f *selectorFlags) resolve(cfg *config.Config, pageURL string) (domain.SelectorSet, error) {
	if f.preset != "" {
		preset, ok := cfg.Preset(f.preset)
		if !ok {
			return domain.SelectorSet{}, fmt.Errorf("unknown preset %q, available: %v", f.preset, cfg.PresetNames())
		}
		return f.set.Merge(preset), nil
	}

	if name, preset, ok := cfg.PresetForURL(pageURL); ok {
		log.Infof("🎯 Using %s selectors detected from URL", name)
		return f.set.Merge(preset), nil
	}

	return f.set, nil
}
