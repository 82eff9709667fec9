package bha

import (
	"net"
	"net/url"
	"strconv"
)

// urlWithCredentials returns a LAN API URL carrying http-user/http-password,
// the form DoorBird expects from stream and image consumers.
func (c *Client) urlWithCredentials(path string, extra url.Values) string {
	q := url.Values{}
	for k, v := range extra {
		q[k] = v
	}
	q.Set("http-user", c.username)
	q.Set("http-password", c.password)
	return c.apiURL(path, q)
}

// LiveVideoURL is the MJPEG live stream.
func (c *Client) LiveVideoURL() string {
	return c.urlWithCredentials("/bha-api/video.cgi", nil)
}

// LiveImageURL is the current JPEG snapshot.
func (c *Client) LiveImageURL() string {
	return c.urlWithCredentials("/bha-api/image.cgi", nil)
}

// HTML5ViewerURL is the browser viewer page.
func (c *Client) HTML5ViewerURL() string {
	return c.urlWithCredentials("/bha-api/view.cgi", nil)
}

// HistoryImageURL is the index-th stored image for an event kind,
// 1 being the most recent.
func (c *Client) HistoryImageURL(index int, event string) string {
	return c.urlWithCredentials("/bha-api/history.cgi", url.Values{
		"index": {strconv.Itoa(index)},
		"event": {event},
	})
}

// RTSPLiveVideoURL is the H.264 live stream.
func (c *Client) RTSPLiveVideoURL() string {
	u := url.URL{
		Scheme: "rtsp",
		User:   url.UserPassword(c.username, c.password),
		Host:   net.JoinHostPort(c.host, strconv.Itoa(RTSPPort)),
		Path:   "/mpeg/media.amp",
	}
	return u.String()
}
