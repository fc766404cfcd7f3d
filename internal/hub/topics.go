package hub

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// IoT Hub device MQTT topics.
const (
	topicMethodsSubscribe = "$iothub/methods/POST/#"
	topicMethodsPrefix    = "$iothub/methods/POST/"

	topicDesiredSubscribe = "$iothub/twin/PATCH/properties/desired/#"
	topicDesiredPrefix    = "$iothub/twin/PATCH/properties/desired/"

	topicTwinResSubscribe = "$iothub/twin/res/#"
	topicTwinResPrefix    = "$iothub/twin/res/"

	topicReportedPrefix = "$iothub/twin/PATCH/properties/reported/"
)

// creationTimeLayout is the iothub-creation-time-utc format.
const creationTimeLayout = "2006-01-02T15:04:05.000Z"

// telemetryTopic builds the device-to-cloud topic with its property bag.
// Properties appear in a fixed order so topics are reproducible.
func telemetryTopic(deviceID, contentType, component string, createdAt time.Time) string {
	var b strings.Builder
	b.WriteString("devices/")
	b.WriteString(deviceID)
	b.WriteString("/messages/events/")

	b.WriteString("$.ct=")
	b.WriteString(url.QueryEscape(contentType))
	if contentType == ContentTypeJSON {
		b.WriteString("&$.ce=utf-8")
	}
	if component != "" {
		b.WriteString("&$.sub=")
		b.WriteString(url.QueryEscape(component))
	}
	if !createdAt.IsZero() {
		b.WriteString("&iothub-creation-time-utc=")
		b.WriteString(url.QueryEscape(createdAt.UTC().Format(creationTimeLayout)))
	}
	return b.String()
}

func methodResponseTopic(status int, rid string) string {
	return fmt.Sprintf("$iothub/methods/res/%d/?$rid=%s", status, url.QueryEscape(rid))
}

func reportedTopic(rid string) string {
	return topicReportedPrefix + "?$rid=" + url.QueryEscape(rid)
}

// parseMethodTopic splits "$iothub/methods/POST/{name}/?$rid={rid}".
func parseMethodTopic(topic string) (name, rid string, err error) {
	rest, ok := strings.CutPrefix(topic, topicMethodsPrefix)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	name, query, ok := strings.Cut(rest, "/?")
	if !ok || name == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s: %w", ErrInvalidTopic, topic, err)
	}
	rid = params.Get("$rid")
	if rid == "" {
		return "", "", fmt.Errorf("%w: %s: missing $rid", ErrInvalidTopic, topic)
	}
	return name, rid, nil
}

// parseTwinResponseTopic splits "$iothub/twin/res/{status}/?$rid={rid}[&$version={v}]".
func parseTwinResponseTopic(topic string) (status int, rid string, err error) {
	rest, ok := strings.CutPrefix(topic, topicTwinResPrefix)
	if !ok {
		return 0, "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	code, query, ok := strings.Cut(rest, "/?")
	if !ok {
		return 0, "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	status, err = strconv.Atoi(code)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %s: bad status", ErrInvalidTopic, topic)
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %s: %w", ErrInvalidTopic, topic, err)
	}
	return status, params.Get("$rid"), nil
}
