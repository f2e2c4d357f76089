// Package bot 机器人拓扑记录、目标解析与分组广播
package bot

import "strings"

// Namespace 拓扑记录在状态存储中的命名空间
const Namespace = "crystelfBots"

// Group 机器人所在的群
type Group struct {
	GroupID   int64  `json:"groupId"`
	GroupName string `json:"groupName"`
}

// Record 客户端上报的单个机器人
type Record struct {
	UIN      int64   `json:"uin"`
	Nickname string  `json:"nickname"`
	Groups   []Group `json:"groups"`
}

// unknown 上报方用于占位的未知群
func (g Group) unknown() bool {
	return g.GroupID <= 0 || strings.EqualFold(g.GroupName, "unknown")
}

// ClientBots 一个客户端上报的全部机器人
type ClientBots struct {
	ClientID string
	Bots     []Record
}

// Candidate 可投递到某个群的机器人
type Candidate struct {
	BotID    int64  `json:"botId"`
	ClientID string `json:"clientId"`
}

// DestinationMap 群号到候选投递目标
type DestinationMap map[int64][]Candidate

// BuildDestinations 汇总所有客户端的机器人，跳过未知群
func BuildDestinations(all []ClientBots) DestinationMap {
	dm := make(DestinationMap)
	for _, cb := range all {
		for _, b := range cb.Bots {
			for _, g := range b.Groups {
				if g.unknown() {
					continue
				}
				dm[g.GroupID] = append(dm[g.GroupID], Candidate{BotID: b.UIN, ClientID: cb.ClientID})
			}
		}
	}
	return dm
}

// clientsOf 候选中不重复的客户端，保持首次出现顺序
func clientsOf(cands []Candidate) []string {
	seen := make(map[string]struct{}, len(cands))
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		if _, ok := seen[c.ClientID]; ok {
			continue
		}
		seen[c.ClientID] = struct{}{}
		out = append(out, c.ClientID)
	}
	return out
}

// botsOf 指定客户端的候选机器人
func botsOf(cands []Candidate, clientID string) []int64 {
	var out []int64
	for _, c := range cands {
		if c.ClientID == clientID {
			out = append(out, c.BotID)
		}
	}
	return out
}

// payload getGroupInfo / sendMessage 的 data 字段
type payload struct {
	BotID    int64  `json:"botId"`
	GroupID  int64  `json:"groupId"`
	ClientID string `json:"clientID,omitempty"`
	Message  string `json:"message,omitempty"`
}
