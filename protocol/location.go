package protocol

import (
	"fmt"
	"net/url"
)

// ResolveLocation turns the Location header of a creation response into an absolute upload URL.
// Host and port, then scheme, are taken from the creation endpoint when the location omits them.
func ResolveLocation(raw string, creation *url.URL) (*url.URL, error) {
	token := firstToken(raw)
	if token == "" {
		return nil, NewProtocolError("creation", "invalid location", ErrInvalidLocation)
	}

	location, err := url.Parse(token)
	if err != nil {
		return nil, NewProtocolError("creation", "invalid location", fmt.Errorf("%w: %s", ErrInvalidLocation, err))
	}

	if location.Host == "" && creation != nil {
		location.Host = creation.Host
	}
	if location.Scheme == "" && creation != nil {
		location.Scheme = creation.Scheme
	}
	return location, nil
}
