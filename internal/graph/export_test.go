package graph

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() *Graph {
	g := New()
	g.AddNode("W1", RoleExchange, "Binance")
	g.AddFlow("U1", "W1", d("3.5"))
	g.AddFlow("W1", "U2", d("0.3"))
	return g
}

func TestWriteDOT(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDOT(&buf, sampleGraph()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "digraph flows {"))
	assert.Contains(t, out, `"W1" [label="Binance", fillcolor="red"`)
	assert.Contains(t, out, `"U1" [label="", fillcolor="skyblue"`)
	assert.Contains(t, out, `"U1" -> "W1" [label="3.5"];`)
	assert.Contains(t, out, `"W1" -> "U2"`)
	assert.True(t, strings.HasSuffix(out, "}\n"))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleGraph()))

	var doc jsonDoc
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Nodes, 3)
	require.Len(t, doc.Edges, 2)

	assert.Equal(t, "U1", doc.Nodes[0].ID)
	assert.Equal(t, "W1", doc.Nodes[2].ID)
	assert.Equal(t, "Binance", doc.Nodes[2].Label)
	assert.Equal(t, RoleExchange, doc.Nodes[2].Group)
	assert.Equal(t, 2, doc.Nodes[2].Value)

	assert.Equal(t, "U1", doc.Edges[0].From)
	assert.Equal(t, "3.5", doc.Edges[0].Value)
	assert.Equal(t, "to", doc.Edges[0].Arrows)
}

func TestWriteJSON_EmptyGraph(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, New()))
	assert.JSONEq(t, `{"nodes":[],"edges":[]}`, buf.String())
}

func TestSaveDOTAndJSON(t *testing.T) {
	dir := t.TempDir()
	dotPath := filepath.Join(dir, "out", "graph.dot")
	jsonPath := filepath.Join(dir, "out", "graph.json")

	require.NoError(t, SaveDOT(dotPath, sampleGraph()))
	require.NoError(t, SaveJSON(jsonPath, sampleGraph()))

	data, err := os.ReadFile(dotPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph")

	data, err = os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestNodeSizeCapped(t *testing.T) {
	assert.InDelta(t, minNodeSize, nodeSize(0), 1e-9)
	assert.InDelta(t, maxNodeSize, nodeSize(10_000), 1e-9)
}

func TestBuildMarketGraph(t *testing.T) {
	flows := []MarketFlow{
		{Wallet: "0xa", Side: SideBuy, Size: d("10")},
		{Wallet: "0xa", Side: SideSell, Size: d("4")},
		{Wallet: "0xb", Side: SideBuy, Size: d("2.5")},
		{Wallet: "0xc", Side: "HOLD", Size: d("1")},
		{Wallet: "0xd", Side: SideBuy, Size: d("0")},
	}
	g := BuildMarketGraph("mkt", flows)

	m, ok := g.Node("mkt")
	require.True(t, ok)
	assert.Equal(t, RoleMarket, m.Role)

	buy, ok := g.Edge("0xa", "mkt")
	require.True(t, ok)
	assert.Equal(t, "10", buy.Value.String())
	sell, ok := g.Edge("mkt", "0xa")
	require.True(t, ok)
	assert.Equal(t, "4", sell.Value.String())

	assert.False(t, g.Has("0xc"))
	assert.False(t, g.Has("0xd"))
	assert.Equal(t, 3, g.NodeCount())
	assert.True(t, g.InFlow("mkt").Equal(d("12.5")))
}

func TestBuildMarketGraph_Empty(t *testing.T) {
	assert.Equal(t, 0, BuildMarketGraph("mkt", nil).NodeCount())
	assert.Equal(t, 0, BuildMarketGraph("", []MarketFlow{{Wallet: "x", Side: SideBuy, Size: d("1")}}).NodeCount())
}
