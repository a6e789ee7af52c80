package s3util

import (
	"net/url"
)

// projectName is the cost-allocation tag value applied to every object the agent writes.
const projectName = "pizero-camera"

// Tagging returns the URL-encoded object tagging string for PutObjectInput.
// The device tag is omitted when deviceID is empty.
func Tagging(deviceID string) *string {
	v := url.Values{}
	v.Set("Project", projectName)
	if deviceID != "" {
		v.Set("Device", deviceID)
	}
	t := v.Encode()
	return &t
}
