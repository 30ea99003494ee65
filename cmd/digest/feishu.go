package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maine/youtube_digest/internal/feishu"
)

var feishuCmd = &cobra.Command{
	Use:   "feishu",
	Short: "Feishu helpers",
}

var feishuUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users visible to the app, to find the value for FEISHU_USER_ID",
	RunE:  runFeishuUsers,
}

func init() {
	feishuCmd.AddCommand(feishuUsersCmd)
}

func runFeishuUsers(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	if !s.env.HasFeishuApp() {
		return fmt.Errorf("FEISHU_APP_ID and FEISHU_APP_SECRET are required")
	}

	client := feishu.NewClient(s.env.FeishuAppID, s.env.FeishuAppSecret, "", nil)
	users, err := client.ListUsers(cmd.Context())
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No users visible. Check the app's contact scope.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER_ID\tNAME\tEMAIL")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\n", u.UserID, u.Name, u.Email)
	}
	return w.Flush()
}
