// Package model holds the value types shared by every media-sort subsystem:
// the Scanner, the Duplicate Detector, the Organizer, and the Undo Manager.
package model

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// FileType classifies a file for organizing and grouping.
type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypeVideo    FileType = "video"
	FileTypeDocument FileType = "document"
	FileTypeOther    FileType = "other"
)

// Metadata is a typed media descriptor populated lazily by the external
// metadata-provider collaborator (image dimensions, video codec, EXIF
// fields). A zero value means "not yet described".
type Metadata struct {
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Codec       string `json:"codec,omitempty"`
	CameraModel string `json:"camera_model,omitempty"`
}

// MediaFile is the central, immutable record produced by the Scanner.
// Mutation (hash backfill) never writes through an existing handle; it
// produces a fresh value via WithHash.
type MediaFile struct {
	Path     string
	Name     string
	Ext      string // always lowercased, includes leading dot, "" if none
	Type     FileType
	Size     int64
	Created  time.Time
	Modified time.Time
	Hash     string // empty until the duplicate detector assigns one
	Metadata *Metadata
}

// NewMediaFile builds a MediaFile from a stat result. Name and Ext are
// derived from path; FileType is derived from Ext.
func NewMediaFile(path string, size int64, created, modified time.Time) MediaFile {
	ext := strings.ToLower(filepath.Ext(path))
	return MediaFile{
		Path:     path,
		Name:     filepath.Base(path),
		Ext:      ext,
		Type:     DetectFileType(ext),
		Size:     size,
		Created:  created,
		Modified: modified,
	}
}

// WithHash returns a copy of f with Hash set, leaving f untouched.
func (f MediaFile) WithHash(hash string) MediaFile {
	f.Hash = hash
	return f
}

// WithMetadata returns a copy of f with Metadata set, leaving f untouched.
func (f MediaFile) WithMetadata(m Metadata) MediaFile {
	f.Metadata = &m
	return f
}

// MetadataProvider is the external collaborator that lazily describes a
// MediaFile beyond what a stat-based scan can see (image dimensions, EXIF
// fields, video codec). CORE operations never depend on one being present;
// it's consumed only by callers that display file detail, each of which is
// responsible for bounding how long it waits on ctx.
type MetadataProvider interface {
	Describe(ctx context.Context, f MediaFile) (Metadata, error)
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
	".webp": true, ".tiff": true, ".svg": true, ".ico": true, ".heic": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".avi": true, ".mkv": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".m4v": true, ".mpg": true, ".mpeg": true,
}

var audioExts = map[string]bool{
	".mp3": true, ".wav": true, ".flac": true, ".aac": true, ".ogg": true,
	".wma": true, ".m4a": true, ".opus": true,
}

var documentExts = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".txt": true, ".odt": true, ".ods": true,
	".odp": true,
}

// DetectFileType classifies a lowercased extension (with leading dot).
// Audio files have no dedicated FileType in the data model; they fall
// under Other, same as any unrecognized extension.
func DetectFileType(ext string) FileType {
	switch {
	case imageExts[ext]:
		return FileTypeImage
	case videoExts[ext]:
		return FileTypeVideo
	case documentExts[ext]:
		return FileTypeDocument
	default:
		return FileTypeOther
	}
}

// IsRecognizedMedia reports whether ext (lowercased, with leading dot) is in
// the image/video/audio recognition set used by accept_by_kind when
// organize_by != "type". Documents and unknown extensions are not "media"
// for discovery-filtering purposes, mirroring the donor's type-agnostic walk
// only accepting recognizable media kinds.
func IsRecognizedMedia(ext string) bool {
	return imageExts[ext] || videoExts[ext] || audioExts[ext]
}

// TypeFolder returns the destination folder name used by organize_by="type".
func (t FileType) TypeFolder() string {
	switch t {
	case FileTypeImage:
		return "Images"
	case FileTypeVideo:
		return "Videos"
	case FileTypeDocument:
		return "Documents"
	default:
		return "Others"
	}
}

// CacheEntry is the persisted form of a MediaFile's identity plus access
// bookkeeping. A cache entry is valid for a file on disk iff (Path, Size,
// Modified) all match verbatim.
type CacheEntry struct {
	Path         string
	Name         string
	Ext          string
	Size         int64
	Modified     time.Time
	Hash         string // empty means not yet hashed
	Metadata     *Metadata
	LastAccessed time.Time
	AccessCount  int64
}

// ToMediaFile reconstructs a MediaFile from a cache hit. Created is not
// persisted in the cache (only Modified participates in the validity key),
// so Created falls back to Modified, matching the platform-fallback rule in
// the data model.
func (e CacheEntry) ToMediaFile() MediaFile {
	return MediaFile{
		Path:     e.Path,
		Name:     e.Name,
		Ext:      e.Ext,
		Type:     DetectFileType(e.Ext),
		Size:     e.Size,
		Created:  e.Modified,
		Modified: e.Modified,
		Hash:     e.Hash,
		Metadata: e.Metadata,
	}
}

// CacheEntryFromMediaFile builds the cache representation of a freshly
// scanned file. AccessCount starts at 1 since scanning itself is an access.
func CacheEntryFromMediaFile(f MediaFile, now time.Time) CacheEntry {
	return CacheEntry{
		Path:         f.Path,
		Name:         f.Name,
		Ext:          f.Ext,
		Size:         f.Size,
		Modified:     f.Modified,
		Hash:         f.Hash,
		Metadata:     f.Metadata,
		LastAccessed: now,
		AccessCount:  1,
	}
}

// CacheStats aggregates file_cache health for operational visibility.
type CacheStats struct {
	TotalEntries  int64
	HashedEntries int64
	TotalSize     int64
	AvgAccesses   float64
}

// DuplicateGroup is an equivalence class of files sharing size and hash.
// Always len(Files) >= 2.
type DuplicateGroup struct {
	Files       []MediaFile
	WastedBytes int64
}

// DuplicateStats summarizes a full duplicate-detection run.
type DuplicateStats struct {
	Groups          []DuplicateGroup
	TotalGroups     int
	TotalDuplicates int // Σ(len(g)-1)
	TotalWasted     int64
}

// NewDuplicateStats builds stats from a completed set of groups.
func NewDuplicateStats(groups []DuplicateGroup) DuplicateStats {
	stats := DuplicateStats{Groups: groups, TotalGroups: len(groups)}
	for _, g := range groups {
		stats.TotalDuplicates += len(g.Files) - 1
		stats.TotalWasted += g.WastedBytes
	}
	return stats
}

// OrganizeBy selects the destination layout strategy.
type OrganizeBy string

const (
	OrganizeByYearly  OrganizeBy = "yearly"
	OrganizeByMonthly OrganizeBy = "monthly"
	OrganizeByType    OrganizeBy = "type"
)

// ScanSettings configures a Scanner run.
type ScanSettings struct {
	SkipHidden    bool
	OrganizeBy    OrganizeBy
	Parallel      bool
	WorkerThreads int
	FilterSet     FilterSet
}

// FilterSet is the consumed collaborator interface for user-defined file
// filtering. Implementations must be pure and side-effect-free.
type FilterSet interface {
	Matches(MediaFile) bool
}

// OrganizeSettings configures an Organizer run.
type OrganizeSettings struct {
	Destination        string
	OrganizeBy         OrganizeBy
	SeparateVideos     bool
	LowercaseExtension bool
	RenameDuplicates   bool
	UndoEnabled        bool
}

// OrganizeResult is returned from a single Organize call.
type OrganizeResult struct {
	FilesOrganized    int
	FilesTotal        int
	Destination       string
	Success           bool
	Timestamp         time.Time
	SkippedDuplicates int
	Errors            []string
}
