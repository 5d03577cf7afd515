package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vinayprograms/loopscope/internal/episode"
	"github.com/vinayprograms/loopscope/internal/replay"
)

// Run prints one or more episode timelines.
func (c *DumpCmd) Run(ctx context.Context, app *appContext) error {
	if c.Follow && (len(c.Targets) != 1 || !isFile(c.Targets[0])) {
		return fmt.Errorf("--follow needs exactly one episode file")
	}

	eps, err := c.load(ctx, app)
	if err != nil {
		return err
	}

	if c.YAML {
		return writeYAML(os.Stdout, eps)
	}

	title := "loopscope dump " + strings.Join(c.Targets, " ")
	usePager := !c.NoPager && isTerminal(os.Stdout)

	if c.Follow && usePager {
		path := c.Targets[0]
		return replay.PageLive(title, path, func() (string, error) {
			ep, err := replay.LoadFile(path)
			if err != nil {
				return "", err
			}
			return c.render([]*replay.Episode{ep}, c.Targets)
		})
	}

	content, err := c.render(eps, c.Targets)
	if err != nil {
		return err
	}
	if usePager {
		return replay.Page(title, content)
	}
	_, err = io.WriteString(os.Stdout, content)
	return err
}

// load resolves every target. Existing files are read directly; anything
// else is an episode id looked up in the configured store.
func (c *DumpCmd) load(ctx context.Context, app *appContext) ([]*replay.Episode, error) {
	var store episode.Store
	eps := make([]*replay.Episode, 0, len(c.Targets))
	for _, target := range c.Targets {
		if isFile(target) {
			ep, err := replay.LoadFile(target)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", target, err)
			}
			eps = append(eps, ep)
			continue
		}
		if store == nil {
			s, _, err := app.store()
			if err != nil {
				return nil, err
			}
			store = s
		}
		ep, err := store.GetEpisode(ctx, target)
		if err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}
	return eps, nil
}

func (c *DumpCmd) render(eps []*replay.Episode, sources []string) (string, error) {
	var buf bytes.Buffer
	err := replay.NewMulti(&buf, c.Verbose).StatsOnly(c.Stats).PrintEpisodes(eps, sources)
	return buf.String(), err
}

// writeYAML prints each episode as a YAML document. Going through JSON keeps
// the wire field names and inlines the raw payloads as structured values.
func writeYAML(w io.Writer, eps []*replay.Episode) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, ep := range eps {
		data, err := json.Marshal(ep)
		if err != nil {
			return err
		}
		var tree any
		if err := json.Unmarshal(data, &tree); err != nil {
			return err
		}
		if err := enc.Encode(tree); err != nil {
			return err
		}
	}
	return enc.Close()
}
