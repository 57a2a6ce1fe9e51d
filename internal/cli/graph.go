package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/FlowDeck/FlowDeck/internal/config"
	"github.com/FlowDeck/FlowDeck/internal/graph"
)

const defaultGraphQuery = "MATCH (n)-[r]-(m) RETURN n, r, m LIMIT 50"

var graphQueryText string

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Query and explore the knowledge graph",
}

var graphQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run one query and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := graphClient()
		if err != nil {
			return err
		}
		data, err := client.Query(context.Background(), graphQueryText, nil)
		if err != nil {
			return err
		}
		printGraph(data)
		return nil
	},
}

var graphViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Explore query results interactively (expand/collapse)",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := graphClient()
		if err != nil {
			return err
		}
		view, err := graph.NewView(context.Background(), client, graphQueryText, nil)
		if err != nil {
			return err
		}
		printGraph(view.Snapshot())
		fmt.Println("Commands: expand <id>, collapse, show, quit")

		in := bufio.NewReader(os.Stdin)
		for {
			line := promptLine(in, "graph> ")
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "quit", "exit":
				return nil
			case "expand":
				if len(fields) < 2 {
					fmt.Println("Usage: expand <node-id>")
					continue
				}
				if err := view.ExpandNode(context.Background(), fields[1]); err != nil {
					fmt.Printf("Expand failed: %v\n", err)
					continue
				}
				printGraph(view.Snapshot())
			case "collapse":
				view.CollapseAll()
				printGraph(view.Snapshot())
			case "show":
				printGraph(view.Snapshot())
			default:
				fmt.Printf("Unknown command %s\n", fields[0])
			}
		}
	},
}

func graphClient() (*graph.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Graph.BaseURL == "" {
		return nil, fmt.Errorf("graph endpoint not configured (run 'flowdeck configure graph')")
	}
	return graph.NewClient(cfg.Graph), nil
}

func printGraph(data *graph.Data) {
	fmt.Printf("%d node(s), %d edge(s)\n", len(data.Nodes), len(data.Edges))
	for _, node := range data.Nodes {
		label := ""
		if len(node.Labels) > 0 {
			label = node.Labels[0]
		}
		name := nodeCaption(node)
		marker := " "
		if node.Expanded {
			marker = "+"
		}
		fmt.Printf(" %s %s %s %s\n", marker, node.ID, labelColor(node.Color).Sprintf("[%s]", label), name)
	}
	for _, edge := range data.Edges {
		fmt.Printf("   %s -%s-> %s\n", edge.From, edge.Type, edge.To)
	}
}

func nodeCaption(node graph.Node) string {
	for _, key := range []string{"name", "title", "id"} {
		if v, ok := node.Properties[key].(string); ok && v != "" {
			return v
		}
	}
	keys := make([]string, 0, len(node.Properties))
	for k := range node.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return fmt.Sprintf("%v", node.Properties[keys[0]])
}

// labelColor maps the palette's hex values onto the nearest terminal colors.
func labelColor(hex string) *color.Color {
	switch strings.ToLower(hex) {
	case "#e91e63", "#795548":
		return color.New(color.FgRed)
	case "#00bcd4", "#009688":
		return color.New(color.FgCyan)
	case "#3f51b5", "#2196f3", "#607d8b":
		return color.New(color.FgBlue)
	case "#8bc34a", "#4caf50":
		return color.New(color.FgGreen)
	case "#ffc107", "#ff9800":
		return color.New(color.FgYellow)
	case "#673ab7", "#9c27b0":
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgWhite)
	}
}

func init() {
	graphQueryCmd.Flags().StringVarP(&graphQueryText, "query", "q", defaultGraphQuery, "Cypher query to run")
	graphViewCmd.Flags().StringVarP(&graphQueryText, "query", "q", defaultGraphQuery, "Cypher query to run")
	graphCmd.AddCommand(graphQueryCmd)
	graphCmd.AddCommand(graphViewCmd)
}
