package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DownloadPrefix marks directories created by a download of this tool. They are
// never picked up again for upload.
const DownloadPrefix = "[_WST_]"

// ContentType is one of the five kinds of workshop content.
type ContentType int

const (
	Mod ContentType = iota
	Blueprint
	IngameScript
	World
	Scenario
)

// AllContentTypes lists the types in batch processing order.
var AllContentTypes = []ContentType{Mod, Blueprint, IngameScript, World, Scenario}

// FetchStrategy selects how the download pipeline fetches items of a type.
type FetchStrategy int

const (
	FetchBatched     FetchStrategy = iota // One call materializes every item
	FetchPerItem                          // One call per item, at least one must succeed
	FetchInstantiate                      // Per item fetch that also extracts into the data dir
)

// TypeSpec is the per-type behaviour table entry.
type TypeSpec struct {
	Type        ContentType
	Name        string // Canonical name, also the collection filter tag
	Subdir      string // Default location relative to the game data directory
	Fetch       FetchStrategy
	Extractable bool
	MarkerFile  string // File that must exist for the content to compile, empty for any file
}

var typeSpecs = [...]TypeSpec{
	Mod:          {Type: Mod, Name: "Mod", Subdir: "Mods", Fetch: FetchBatched, Extractable: true},
	Blueprint:    {Type: Blueprint, Name: "Blueprint", Subdir: filepath.Join("Blueprints", "local"), Fetch: FetchPerItem, Extractable: true, MarkerFile: "bp.sbc"},
	IngameScript: {Type: IngameScript, Name: "IngameScript", Subdir: filepath.Join("IngameScripts", "local"), Fetch: FetchPerItem, Extractable: true, MarkerFile: "Script.cs"},
	World:        {Type: World, Name: "World", Subdir: "Saves", Fetch: FetchInstantiate, MarkerFile: "Sandbox.sbc"},
	Scenario:     {Type: Scenario, Name: "Scenario", Subdir: "Scenarios", Fetch: FetchInstantiate, MarkerFile: "Sandbox.sbc"},
}

// Spec returns the behaviour table entry for t.
func (t ContentType) Spec() TypeSpec {
	if !t.Valid() {
		return TypeSpec{Type: t, Name: t.String()}
	}
	return typeSpecs[t]
}

// Valid reports whether t is one of the known content types.
func (t ContentType) Valid() bool {
	return t >= Mod && t <= Scenario
}

func (t ContentType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("ContentType(%d)", int(t))
	}
	return typeSpecs[t].Name
}

// ParseContentType accepts the canonical name in any case.
func ParseContentType(s string) (ContentType, error) {
	for _, t := range AllContentTypes {
		if strings.EqualFold(typeSpecs[t].Name, strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown content type %q", s)
}

// GameProfile describes one supported game: where its data lives and which
// content types it can upload and download.
type GameProfile struct {
	Name          string
	AppID         uint32
	DataDirName   string // Directory name under the user config dir
	DataPath      string // Resolved data directory
	UploadTypes   []ContentType
	DownloadTypes []ContentType
}

var gameProfiles = []GameProfile{
	{
		Name:          "SpaceEngineers",
		AppID:         244850,
		DataDirName:   "SpaceEngineers",
		UploadTypes:   AllContentTypes,
		DownloadTypes: AllContentTypes,
	},
	{
		Name:          "MedievalEngineers",
		AppID:         333950,
		DataDirName:   "MedievalEngineers",
		UploadTypes:   []ContentType{Mod, Blueprint, World, Scenario},
		DownloadTypes: []ContentType{Mod, Blueprint},
	},
}

// LookupGameProfile finds a profile by name (case-insensitive). An empty name
// selects SpaceEngineers.
func LookupGameProfile(name string) (GameProfile, error) {
	if strings.TrimSpace(name) == "" {
		return gameProfiles[0], nil
	}
	for _, p := range gameProfiles {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return GameProfile{}, fmt.Errorf("unknown game %q", name)
}

// SupportsUpload reports whether the game accepts uploads of t.
func (g GameProfile) SupportsUpload(t ContentType) bool {
	return containsType(g.UploadTypes, t)
}

// SupportsDownload reports whether the game can download t.
func (g GameProfile) SupportsDownload(t ContentType) bool {
	return containsType(g.DownloadTypes, t)
}

// ItemPath is the default local directory for content of type t.
func (g GameProfile) ItemPath(t ContentType) string {
	return filepath.Join(g.DataPath, t.Spec().Subdir)
}

func containsType(types []ContentType, t ContentType) bool {
	for _, c := range types {
		if c == t {
			return true
		}
	}
	return false
}
