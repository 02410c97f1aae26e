package repo

import "context"

// ClassifierRepo is the optional content classifier interface
type ClassifierRepo interface {
	// IsAdvertisement reports whether the text reads as an advertisement
	IsAdvertisement(ctx context.Context, text string) (bool, error)
}
