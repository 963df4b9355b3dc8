package plugin

import (
	"fmt"

	"github.com/broady/contract"
)

// ScopeMismatchError is returned by Eject when the ID belongs to another chain.
type ScopeMismatchError struct {
	Key string
	Got string
}

func (e *ScopeMismatchError) Error() string {
	return fmt.Sprintf("plugin: id for scope '%s' used on chain '%s'", e.Got, e.Key)
}

// PluginNotFoundError is returned when there is nothing to eject.
type PluginNotFoundError struct {
	Key  string
	Name string
	Slot int
}

func (e *PluginNotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("plugin: no plugin named '%s' in chain '%s'", e.Name, e.Key)
	}
	return fmt.Sprintf("plugin: no plugin at slot %d in chain '%s'", e.Slot, e.Key)
}

// InvalidBodyError is returned by the form plugins for bodies that are not objects.
type InvalidBodyError struct {
	Format contract.RequestFormat
	Got    string
}

func (e *InvalidBodyError) Error() string {
	return fmt.Sprintf("plugin: %s body must be an object, got %s", e.Format, e.Got)
}

// LargeFileDownloadError is returned when a streamed download cannot complete.
type LargeFileDownloadError struct {
	Reason string
	Cause  error
}

func (e *LargeFileDownloadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("plugin: large file download failed: %s: %v", e.Reason, e.Cause)
	}
	return "plugin: large file download failed: " + e.Reason
}

func (e *LargeFileDownloadError) Unwrap() error { return e.Cause }
