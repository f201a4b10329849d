//go:build linux

package usbid

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// DefaultPaths lists the standard locations for the USB ID database.
var DefaultPaths = []string{
	"/usr/share/hwdata/usb.ids",
	"/var/lib/usbutils/usb.ids",
	"/usr/share/misc/usb.ids",
}

// Database caches vendor, product and class names from the USB ID database.
type Database struct {
	vendors  map[uint16]string // VID -> vendor name
	products map[uint32]string // (VID<<16)|PID -> product name
	classes  map[uint8]string  // class code -> class name
	loaded   bool
	found    bool // a database file was read
	mu       sync.RWMutex
	paths    []string
}

// New creates a new USB ID database that searches the default paths.
func New() *Database {
	return NewWithPaths(DefaultPaths)
}

// NewWithPaths creates a new USB ID database that searches the specified paths.
func NewWithPaths(paths []string) *Database {
	return &Database{
		vendors:  make(map[uint16]string),
		products: make(map[uint32]string),
		classes:  make(map[uint8]string),
		paths:    paths,
	}
}

// Load parses the first readable file in the search paths. It is
// idempotent: once a load was attempted, later calls do nothing.
//
// Returns true if the database was loaded (or already loaded), false if no
// database file could be found.
func (db *Database) Load() bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.loaded {
		return db.found
	}
	// Mark as loaded even if no file is found to prevent repeated searches.
	db.loaded = true

	for _, path := range db.paths {
		file, err := os.Open(path)
		if err != nil {
			continue
		}
		db.parse(file)
		file.Close()
		db.found = true
		return true
	}
	return false
}

// LoadFrom parses the database from r, merging into any entries already
// present, and marks the database loaded.
func (db *Database) LoadFrom(r io.Reader) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.loaded = true
	db.found = true
	return db.parse(r)
}

// section tracks which block of the usb.ids file the parser is inside.
type section uint8

const (
	sectionNone section = iota
	sectionVendor
	sectionClass
)

// parse reads the usb.ids format:
//
//	vvvv  Vendor name
//	<tab>pppp  Product name
//	C cc  Class name
//	<tab>ss  Subclass name
//
// Lines that do not fit are skipped. Caller must hold db.mu.
func (db *Database) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	var (
		sect       section
		currentVID uint16
	)

	for scanner.Scan() {
		line := scanner.Text()

		if len(line) == 0 || line[0] == '#' {
			continue
		}

		if line[0] == '\t' {
			if len(line) > 1 && line[1] == '\t' {
				continue // interface/protocol level, unused
			}
			if sect != sectionVendor {
				continue
			}
			id, name, ok := splitEntry(line[1:], 4)
			if !ok {
				continue
			}
			pid, err := strconv.ParseUint(id, 16, 16)
			if err != nil {
				continue
			}
			db.products[uint32(currentVID)<<16|uint32(pid)] = name
			continue
		}

		if strings.HasPrefix(line, "C ") {
			id, name, ok := splitEntry(line[2:], 2)
			sect = sectionNone
			if !ok {
				continue
			}
			class, err := strconv.ParseUint(id, 16, 8)
			if err != nil {
				continue
			}
			db.classes[uint8(class)] = name
			sect = sectionClass
			continue
		}

		id, name, ok := splitEntry(line, 4)
		sect = sectionNone
		if !ok {
			continue
		}
		vid, err := strconv.ParseUint(id, 16, 16)
		if err != nil {
			continue
		}
		currentVID = uint16(vid)
		db.vendors[currentVID] = name
		sect = sectionVendor
	}

	return scanner.Err()
}

// splitEntry splits "<hex id of width>  <name>" into its parts.
func splitEntry(s string, width int) (id, name string, ok bool) {
	if len(s) < width+2 || s[width] != ' ' {
		return "", "", false
	}
	name = strings.TrimSpace(s[width+1:])
	if name == "" {
		return "", "", false
	}
	return s[:width], name, true
}

// LookupVendor returns the vendor name for the given VID.
// Returns an empty string if the vendor is not found or if the database
// has not been loaded.
func (db *Database) LookupVendor(vid uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.vendors[vid]
}

// LookupProduct returns the product name for the given VID/PID combination.
// Returns an empty string if the product is not found.
func (db *Database) LookupProduct(vid, pid uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.products[uint32(vid)<<16|uint32(pid)]
}

// LookupClass returns the name of a USB class code.
// Returns an empty string if the class is not found.
func (db *Database) LookupClass(class uint8) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.classes[class]
}

// Describe returns the best available name for a device: the product name,
// else "<vendor> device", else an empty string.
func (db *Database) Describe(vid, pid uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if name := db.products[uint32(vid)<<16|uint32(pid)]; name != "" {
		return name
	}
	if vendor := db.vendors[vid]; vendor != "" {
		return vendor + " device"
	}
	return ""
}

// IsLoaded returns true if the database has been loaded (or load was attempted).
func (db *Database) IsLoaded() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.loaded
}

// VendorCount returns the number of vendors in the database.
func (db *Database) VendorCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.vendors)
}

// ProductCount returns the number of products in the database.
func (db *Database) ProductCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.products)
}

// ClassCount returns the number of classes in the database.
func (db *Database) ClassCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.classes)
}
