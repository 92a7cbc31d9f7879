package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gitlab.com/paramountdax-exchange/genealogy_api/client"
	"gitlab.com/paramountdax-exchange/genealogy_api/model"
	"gitlab.com/paramountdax-exchange/genealogy_api/tree"
)

var treeFlags = struct {
	api        string
	token      string
	root       uint64
	depth      int
	search     string
	expand     string
	maxFetches int
	timeout    time.Duration
}{}

func init() {
	treeCmd.Flags().StringVar(&treeFlags.api, "api", "http://localhost:8080", "base url of the genealogy api")
	treeCmd.Flags().StringVar(&treeFlags.token, "token", os.Getenv("GENEALOGY_TOKEN"), "bearer token of the member (default $GENEALOGY_TOKEN)")
	treeCmd.Flags().Uint64Var(&treeFlags.root, "root", 0, "id of the node to start from (default is the caller)")
	treeCmd.Flags().IntVar(&treeFlags.depth, "depth", 2, "number of levels loaded per request")
	treeCmd.Flags().StringVar(&treeFlags.search, "search", "", "only show the members whose name or id contains the text")
	treeCmd.Flags().StringVar(&treeFlags.expand, "expand", "All", "number of levels to expand or All")
	treeCmd.Flags().IntVar(&treeFlags.maxFetches, "max-fetches", 10, "maximum number of drill-down requests used to load deeper levels")
	treeCmd.Flags().DurationVar(&treeFlags.timeout, "timeout", 10*time.Second, "timeout of each request")
	rootCmd.AddCommand(treeCmd)
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the referral tree of a member using the network API",
	// the client does not need the server configuration
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		customizeLogger()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		expand, err := parseExpand(treeFlags.expand)
		if err != nil {
			return err
		}
		ctx := context.Background()
		api := client.New(treeFlags.api, treeFlags.token, treeFlags.timeout)

		nav := tree.NewNavigator(api, treeFlags.root, treeFlags.depth)
		if err := nav.Load(ctx, nav.ReturnToRoot()); err != nil {
			if errors.Is(err, model.ErrTooManyNodes) {
				return errors.Wrap(err, "the network is too large for this depth, use a lower --depth or drill down with --root")
			}
			return err
		}
		view, _ := nav.View()

		if expand == tree.ExpandAll || expand > treeFlags.depth {
			view = loadDeeper(ctx, api, view, expand)
		}
		view = tree.ExpandToDepth(view, expand)
		if treeFlags.search != "" {
			view = tree.Prune(view, treeFlags.search)
		}
		fmt.Fprint(cmd.OutOrStdout(), tree.Render(view, treeFlags.search != ""))
		return nil
	},
}

func parseExpand(value string) (int, error) {
	if strings.EqualFold(value, "all") {
		return tree.ExpandAll, nil
	}
	levels, err := strconv.Atoi(value)
	if err != nil || levels < 0 {
		return 0, errors.Errorf("invalid --expand %q, use a number of levels or All", value)
	}
	return levels, nil
}

// loadDeeper drills down from the frontier nodes until the expanded levels are loaded
func loadDeeper(ctx context.Context, api *client.Client, view *tree.Tree, expand int) *tree.Tree {
	rootLevel := view.Root().AbsoluteLevel
	for fetches := 0; fetches < treeFlags.maxFetches; {
		var next *tree.Node
		for _, n := range view.Frontier() {
			if expand == tree.ExpandAll || n.AbsoluteLevel-rootLevel < expand {
				n := n
				next = &n
				break
			}
		}
		if next == nil {
			return view
		}
		fetches++
		sub, err := api.NetworkTree(ctx, next.ID, treeFlags.depth)
		if err != nil {
			log.Warn().Err(err).Str("section", "tree").Uint64("member_id", next.ID).Msg("Unable to load subtree")
			return view
		}
		merged, err := view.Merge(sub)
		if err != nil {
			return view
		}
		view = merged
	}
	return view
}
