package commands

import (
	"fmt"
	"os"

	"github.com/mosaicnetworks/tangle/src/peers"
	"github.com/spf13/cobra"
)

// NewNeighborsCmd produces the command managing the neighbors.json file of the
// data directory.
func NewNeighborsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neighbors",
		Short: "Manage the neighbors file",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the neighbors",
			RunE:  listNeighbors,
		},
		&cobra.Command{
			Use:   "add [uri]...",
			Short: "Add udp://host:port neighbors",
			Args:  cobra.MinimumNArgs(1),
			RunE:  addNeighbors,
		},
		&cobra.Command{
			Use:   "remove [uri]...",
			Short: "Remove neighbors",
			Args:  cobra.MinimumNArgs(1),
			RunE:  removeNeighbors,
		},
	)

	return cmd
}

func datadir(cmd *cobra.Command) string {
	if dir, err := cmd.Flags().GetString("datadir"); err == nil && dir != "" {
		return dir
	}
	return _config.DataDir
}

func readNeighbors(cmd *cobra.Command) (*peers.JSONNeighbors, []string, error) {
	jsonNeighbors := peers.NewJSONNeighbors(datadir(cmd))
	uris, err := jsonNeighbors.URIs()
	if err != nil && !os.IsNotExist(err) {
		return nil, nil, err
	}
	return jsonNeighbors, uris, nil
}

func listNeighbors(cmd *cobra.Command, args []string) error {
	_, uris, err := readNeighbors(cmd)
	if err != nil {
		return err
	}
	for _, uri := range uris {
		fmt.Println(uri)
	}
	return nil
}

func addNeighbors(cmd *cobra.Command, args []string) error {
	jsonNeighbors, uris, err := readNeighbors(cmd)
	if err != nil {
		return err
	}

	for _, uri := range args {
		if _, err := peers.ParseURI(uri); err != nil {
			return fmt.Errorf("Invalid neighbor %s: %v", uri, err)
		}
		if !contains(uris, uri) {
			uris = append(uris, uri)
		}
	}

	if err := os.MkdirAll(datadir(cmd), 0700); err != nil {
		return err
	}

	if err := jsonNeighbors.Write(uris); err != nil {
		return err
	}

	fmt.Printf("Neighbors saved to: %s\n", jsonNeighbors.Path())
	return nil
}

func removeNeighbors(cmd *cobra.Command, args []string) error {
	jsonNeighbors, uris, err := readNeighbors(cmd)
	if err != nil {
		return err
	}

	kept := []string{}
	for _, uri := range uris {
		if !contains(args, uri) {
			kept = append(kept, uri)
		}
	}

	if err := jsonNeighbors.Write(kept); err != nil {
		return err
	}

	fmt.Printf("Neighbors saved to: %s\n", jsonNeighbors.Path())
	return nil
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
