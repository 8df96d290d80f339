package client

// GraphQL documents for the catalog operations. Kept minimal: only the
// fields the engine actually consumes are selected.
const (
	queryCurrentUser = `query CurrentUser {
  currentUser { id }
}`

	queryCampaigns = `query ViewerDropsDashboard {
  currentUser {
    dropCampaigns(fetchRewardCampaigns: false) {
      id
      name
      game { id displayName }
      startAt
      endAt
      isAccountConnected
      allowedChannels: allow { channels { id name } }
      timeBasedDrops {
        id
        name
        requiredMinutesWatched
        benefitEdges { id name imageAssetURL }
        self { currentMinutesWatched requiredMinutesWatched isClaimed dropInstanceID }
      }
    }
  }
}`

	queryChannelStatus = `query ChannelStatus($channelID: ID!) {
  user(id: $channelID) {
    stream { id viewersCount hasDropsEnabled }
  }
}`

	queryGameStreams = `query GameStreams($gameID: ID!, $limit: Int!, $dropsOnly: Boolean!) {
  game(id: $gameID) {
    id
    displayName
    streams(first: $limit, options: {requireDropsEnabled: $dropsOnly}) {
      edges {
        node {
          id
          viewersCount
          hasDropsEnabled
          broadcaster { id name }
        }
      }
    }
  }
}`

	queryInventory = `query Inventory {
  currentUser {
    inventory {
      dropCampaignsInProgress {
        id
        name
        game { id displayName }
        startAt
        endAt
        timeBasedDrops {
          id
          name
          requiredMinutesWatched
          benefitEdges { id name imageAssetURL }
          self { currentMinutesWatched requiredMinutesWatched isClaimed dropInstanceID }
        }
      }
      gameEventDrops { id }
    }
  }
}`

	queryClaimDrop = `mutation DropsPage_ClaimDropRewards($input: ClaimDropRewardsInput!) {
  claimDropRewards(input: $input) { status }
}`
)
