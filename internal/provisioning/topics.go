package provisioning

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// apiVersion is the DPS device API version sent in the MQTT username.
	apiVersion = "2019-03-31"

	topicResponseSubscribe = "$dps/registrations/res/#"
	topicResponsePrefix    = "$dps/registrations/res/"
)

func registerTopic(rid string) string {
	return "$dps/registrations/PUT/iotdps-register/?$rid=" + url.QueryEscape(rid)
}

func operationStatusTopic(rid, operationID string) string {
	return "$dps/registrations/GET/iotdps-get-operationstatus/?$rid=" + url.QueryEscape(rid) +
		"&operationId=" + url.QueryEscape(operationID)
}

// registrationResource is the SAS resource URI of a registration.
func registrationResource(idScope, registrationID string) string {
	return idScope + "/registrations/" + registrationID
}

func username(idScope, registrationID string) string {
	return fmt.Sprintf("%s/registrations/%s/api-version=%s", idScope, registrationID, apiVersion)
}

// parseResponseTopic splits "$dps/registrations/res/{status}/?$rid={rid}[&retry-after={s}]".
func parseResponseTopic(topic string) (response, error) {
	rest, ok := strings.CutPrefix(topic, topicResponsePrefix)
	if !ok {
		return response{}, fmt.Errorf("unexpected topic %q", topic)
	}

	code, query, _ := strings.Cut(rest, "/?")
	status, err := strconv.Atoi(strings.TrimSuffix(code, "/"))
	if err != nil {
		return response{}, fmt.Errorf("bad status in topic %q", topic)
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return response{}, fmt.Errorf("bad query in topic %q: %w", topic, err)
	}

	resp := response{status: status, rid: params.Get("$rid")}
	if s := params.Get("retry-after"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			resp.retryAfter = time.Duration(secs) * time.Second
		}
	}
	return resp, nil
}
