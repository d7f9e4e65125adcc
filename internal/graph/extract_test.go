package graph

import (
	"testing"

	"github.com/ShehabAgain/threat-grapher/internal/logparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEvent(format logparse.Format, pairs ...string) *logparse.Event {
	ev := logparse.NewEvent("test.log", format)
	for i := 0; i+1 < len(pairs); i += 2 {
		ev.Set(pairs[i], pairs[i+1])
	}
	return ev
}

func nodeIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

func findEdge(edges []*Edge, label string) *Edge {
	for _, e := range edges {
		if e.Label == label {
			return e
		}
	}
	return nil
}

func TestExtractSysmonProcessCreate(t *testing.T) {
	ev := makeEvent(logparse.FormatXMLEvent,
		"EventID", "1",
		"Computer", "victim.attackrange.local",
		"Image", `C:\Windows\System32\whoami.exe`,
		"ParentImage", `C:\Windows\System32\cmd.exe`,
		"User", `ATTACKRANGE\victim`,
	)

	nodes, edges := Extract(ev, logparse.FormatXMLEvent)

	require.Len(t, nodes, 4) // host, child, parent, user
	spawned := findEdge(edges, "spawned")
	require.NotNil(t, spawned)
	assert.Equal(t, RelationProcessCreation, spawned.Relation)
	assert.Contains(t, spawned.Src, "cmd.exe")
	assert.Contains(t, spawned.Dst, "whoami.exe")

	ran := findEdge(edges, "ran")
	require.NotNil(t, ran)
	assert.Equal(t, RelationExecution, ran.Relation)
}

func TestExtractSysmonNetworkConnection(t *testing.T) {
	ev := makeEvent(logparse.FormatXMLEvent,
		"EventID", "3",
		"Computer", "victim",
		"Image", `C:\evil.exe`,
		"SourceIp", "10.0.0.5",
		"DestinationIp", "203.0.113.9",
		"DestinationPort", "443",
	)

	nodes, edges := Extract(ev, logparse.FormatXMLEvent)

	assert.Len(t, nodes, 4)
	connected := findEdge(edges, "connected:443")
	require.NotNil(t, connected)
	assert.Equal(t, RelationNetwork, connected.Relation)
}

func TestExtractSysmonGenericFallback(t *testing.T) {
	// An unmapped event id still contributes signal through the generic
	// event_<id> edge.
	ev := makeEvent(logparse.FormatXMLEvent,
		"EventID", "255",
		"Computer", "victim",
		"Image", `C:\tool.exe`,
		"User", "victim",
	)

	_, edges := Extract(ev, logparse.FormatXMLEvent)
	assert.NotNil(t, findEdge(edges, "event_255"))
	assert.NotNil(t, findEdge(edges, "associated"))
}

func TestExtractKeyValueProcessCreate(t *testing.T) {
	// Scenario: structured New Process Name / Creator Process Name fields.
	ev := makeEvent(logparse.FormatKeyValue,
		"EventCode", "4688",
		"New Process Name", `C:\a.exe`,
		"Creator Process Name", `C:\b.exe`,
	)

	nodes, edges := Extract(ev, logparse.FormatKeyValue)

	procs := 0
	for _, n := range nodes {
		if n.Type == EntityProcess {
			procs++
		}
	}
	assert.Equal(t, 2, procs)

	spawned := findEdge(edges, "spawned")
	require.NotNil(t, spawned)
	assert.Contains(t, spawned.Src, "b.exe")
	assert.Contains(t, spawned.Dst, "a.exe")
}

func TestExtractKeyValueServiceInstallFromMessage(t *testing.T) {
	ev := makeEvent(logparse.FormatKeyValue,
		"EventCode", "7045",
		"ComputerName", "victim",
		"Message", "A service was installed in the system.\n\nService Name: EvilSvc\nService File Name: C:\\evil.exe",
	)

	nodes, edges := Extract(ev, logparse.FormatKeyValue)

	assert.Contains(t, nodeIDs(nodes), "service::evilsvc")
	require.NotNil(t, findEdge(edges, "installed_service"))
	binary := findEdge(edges, "image_path")
	require.NotNil(t, binary)
	assert.Equal(t, RelationServiceBinary, binary.Relation)
}

func TestExtractKeyValueLogonFailure(t *testing.T) {
	ev := makeEvent(logparse.FormatKeyValue,
		"EventCode", "4625",
		"ComputerName", "victim",
		"User", "administrator",
		"Message", "An account failed to log on.\nSource Network Address: 10.0.0.99",
	)

	nodes, edges := Extract(ev, logparse.FormatKeyValue)

	assert.Contains(t, nodeIDs(nodes), "ip::10.0.0.99")
	assert.NotNil(t, findEdge(edges, "failed_logon"))
	assert.NotNil(t, findEdge(edges, "logon_source"))
}

func TestExtractKeyValueGenericFallback(t *testing.T) {
	ev := makeEvent(logparse.FormatKeyValue,
		"EventCode", "5156",
		"ComputerName", "victim",
		"User", "victim",
	)

	_, edges := Extract(ev, logparse.FormatKeyValue)
	require.Len(t, edges, 1)
	assert.Equal(t, "event_5156", edges[0].Label)
}

func TestExtractJSONCloudAudit(t *testing.T) {
	// Scenario: CreateUser by bob yields user, api_call, and "called" edge.
	ev := makeEvent(logparse.FormatJSON,
		"eventName", "CreateUser",
		"userIdentity.userName", "bob",
	)

	nodes, edges := Extract(ev, logparse.FormatJSON)

	ids := nodeIDs(nodes)
	assert.Contains(t, ids, "user::bob")
	assert.Contains(t, ids, "api_call::createuser")

	called := findEdge(edges, "called")
	require.NotNil(t, called)
	assert.Equal(t, "user::bob", called.Src)
	assert.Equal(t, "api_call::createuser", called.Dst)
}

func TestExtractJSONResourceTarget(t *testing.T) {
	ev := makeEvent(logparse.FormatJSON,
		"eventName", "PutBucketPolicy",
		"userIdentity.arn", "arn:aws:iam::123456789012:user/mallory",
		"sourceIPAddress", "198.51.100.7",
		"requestParameters.bucketName", "loot-bucket",
		"recipientAccountId", "123456789012",
		"awsRegion", "us-east-1",
	)

	nodes, edges := Extract(ev, logparse.FormatJSON)

	ids := nodeIDs(nodes)
	assert.Contains(t, ids, "user::mallory")
	assert.Contains(t, ids, "ip::198.51.100.7")
	assert.Contains(t, ids, "resource::loot-bucket")
	assert.Contains(t, ids, "host::123456789012/us-east-1")

	onResource := findEdge(edges, "on_resource")
	require.NotNil(t, onResource)
	assert.Equal(t, RelationTarget, onResource.Relation)
}

func TestExtractDelimitedRequest(t *testing.T) {
	ev := makeEvent(logparse.FormatDelimited,
		"client_ip", "10.0.1.50",
		"server_ip", "10.0.1.14",
		"username", "victim",
		"method", "POST",
		"uri_stem", "/owa/auth.owa",
		"protocol_status", "302",
	)

	nodes, edges := Extract(ev, logparse.FormatDelimited)

	assert.Contains(t, nodeIDs(nodes), "resource::post /owa/auth.owa")
	request := findEdge(edges, "POST (302)")
	require.NotNil(t, request)
	assert.Equal(t, RelationHTTPRequest, request.Relation)
	assert.NotNil(t, findEdge(edges, "served_by"))
	assert.NotNil(t, findEdge(edges, "from"))
}

func TestExtractUnknownFormat(t *testing.T) {
	ev := makeEvent(logparse.FormatUnknown, "foo", "bar")
	nodes, edges := Extract(ev, logparse.FormatUnknown)
	assert.Empty(t, nodes)
	assert.Empty(t, edges)
}
